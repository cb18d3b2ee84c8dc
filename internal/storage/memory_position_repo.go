package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется по умолчанию и в тестах. Данные теряются при перезапуске.
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[string]SavedPosition
}

func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{data: make(map[string]SavedPosition)}
}

func (r *MemoryPositionRepo) Save(ctx context.Context, name string, pos SavedPosition) error {
	if err := validate(name, pos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = pos
	return nil
}

func (r *MemoryPositionRepo) Load(ctx context.Context, name string) (SavedPosition, bool, error) {
	if err := validateName(name); err != nil {
		return SavedPosition{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return SavedPosition{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.data[name]
	return pos, ok, nil
}

func (r *MemoryPositionRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.data, name)
	return nil
}

// BatchSave валидирует все записи до записи, частичного сохранения не бывает.
func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBatch(positions); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, pos := range positions {
		r.data[name] = pos
	}
	return nil
}

// Count количество сохранённых позиций.
func (r *MemoryPositionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryPositionRepo) Close() error { return nil }
