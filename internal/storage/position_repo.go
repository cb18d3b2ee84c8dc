package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/tileworld/internal/config"
	"github.com/annel0/tileworld/internal/vec"
)

var (
	// ErrInvalidPlayer пустое имя игрока
	ErrInvalidPlayer = errors.New("недействительное имя игрока")
	// ErrInvalidPosition отрицательный слой или пустой идентификатор карты
	ErrInvalidPosition = errors.New("недействительная позиция")
	// ErrNotFound сохранённой позиции нет
	ErrNotFound = errors.New("позиция не найдена")
)

// SavedPosition последнее известное местоположение игрока.
type SavedPosition struct {
	MapID string   `json:"map_id" bson:"map_id"`
	Pos   vec.Vec3 `json:"pos" bson:"pos"`
}

// PositionRepo сохраняет и загружает позиции игроков между сессиями.
// Позиции привязаны к имени игрока, а не к идентификатору сессии.
type PositionRepo interface {
	// Save сохраняет позицию игрока, перезаписывая предыдущую.
	Save(ctx context.Context, name string, pos SavedPosition) error

	// Load возвращает позицию и false, если игрок входит впервые.
	Load(ctx context.Context, name string) (SavedPosition, bool, error)

	// Delete удаляет позицию. ErrNotFound, если её не было.
	Delete(ctx context.Context, name string) error

	// BatchSave сохраняет позиции нескольких игроков (автосохранение).
	BatchSave(ctx context.Context, positions map[string]SavedPosition) error

	Close() error
}

func validate(name string, pos SavedPosition) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidPlayer
	}
	if pos.MapID == "" || pos.Pos.Layer < 0 {
		return fmt.Errorf("%w: игрок %s, карта %q, слой %d", ErrInvalidPosition, name, pos.MapID, pos.Pos.Layer)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidPlayer
	}
	return nil
}

func validateBatch(positions map[string]SavedPosition) error {
	for name, pos := range positions {
		if err := validate(name, pos); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}
	return nil
}

// Open создаёт репозиторий по настройкам хранилища.
func Open(ctx context.Context, cfg config.StorageConfig) (PositionRepo, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemoryPositionRepo(), nil
	case config.BackendBadger:
		return NewBadgerPositionRepo(cfg.DSN)
	case config.BackendRedis:
		return NewRedisPositionRepo(ctx, cfg.DSN)
	case config.BackendMaria:
		return NewMariaPositionRepo(ctx, cfg.DSN)
	case config.BackendMongo:
		return NewMongoPositionRepo(ctx, MongoConfig{URI: cfg.DSN, Database: cfg.Database})
	default:
		return nil, fmt.Errorf("неизвестное хранилище: %s", cfg.Backend)
	}
}
