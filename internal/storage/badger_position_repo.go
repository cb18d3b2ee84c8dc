package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "pos:"

// BadgerPositionRepo хранит позиции во встроенной BadgerDB.
type BadgerPositionRepo struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// NewBadgerPositionRepo открывает базу в каталоге path.
// Пустой path открывает базу в памяти.
func NewBadgerPositionRepo(path string) (*BadgerPositionRepo, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	logging.GetStorageLogger().Info("💾 BadgerDB открыта (%s)", badgerLocation(path))
	return &BadgerPositionRepo{db: db}, nil
}

func badgerLocation(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}

func badgerKey(name string) []byte {
	return []byte(badgerKeyPrefix + name)
}

func (r *BadgerPositionRepo) ready() error {
	if r.closed {
		return errors.New("хранилище закрыто")
	}
	return nil
}

func (r *BadgerPositionRepo) Save(ctx context.Context, name string, pos SavedPosition) error {
	return r.BatchSave(ctx, map[string]SavedPosition{name: pos})
}

func (r *BadgerPositionRepo) Load(ctx context.Context, name string) (SavedPosition, bool, error) {
	if err := validateName(name); err != nil {
		return SavedPosition{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return SavedPosition{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ready(); err != nil {
		return SavedPosition{}, false, err
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var pos SavedPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка десериализации позиции %s: %w", name, err)
	}
	return pos, true, nil
}

func (r *BadgerPositionRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(name)); err != nil {
			return err
		}
		return txn.Delete(badgerKey(name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// BatchSave пишет все позиции одной транзакцией.
func (r *BadgerPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := validateBatch(positions); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for name, pos := range positions {
			data, err := json.Marshal(pos)
			if err != nil {
				return fmt.Errorf("ошибка сериализации позиции %s: %w", name, err)
			}
			if err := txn.Set(badgerKey(name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (r *BadgerPositionRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
