package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

const upsertPositionSQL = `
	INSERT INTO player_positions (name, map_id, x, y, layer)
	VALUES (?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		map_id = VALUES(map_id),
		x = VALUES(x),
		y = VALUES(y),
		layer = VALUES(layer),
		updated_at = CURRENT_TIMESTAMP
`

// MariaPositionRepo реализует PositionRepo для MariaDB/MySQL.
// Использует таблицу player_positions.
type MariaPositionRepo struct {
	db *sql.DB
}

// NewMariaPositionRepo подключается по dsn (user:pass@tcp(host:port)/dbname)
// и создаёт таблицу, если её нет.
func NewMariaPositionRepo(ctx context.Context, dsn string) (*MariaPositionRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPositionRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MariaPositionRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS player_positions (
			name       VARCHAR(64)  PRIMARY KEY,
			map_id     VARCHAR(64)  NOT NULL,
			x          INT          NOT NULL,
			y          INT          NOT NULL,
			layer      INT          NOT NULL DEFAULT 0,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы player_positions: %w", err)
	}
	return nil
}

func (r *MariaPositionRepo) Save(ctx context.Context, name string, pos SavedPosition) error {
	if err := validate(name, pos); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, upsertPositionSQL, name, pos.MapID, pos.Pos.X, pos.Pos.Y, pos.Pos.Layer)
	if err != nil {
		return fmt.Errorf("ошибка сохранения позиции игрока %s: %w", name, err)
	}
	return nil
}

func (r *MariaPositionRepo) Load(ctx context.Context, name string) (SavedPosition, bool, error) {
	if err := validateName(name); err != nil {
		return SavedPosition{}, false, err
	}

	var pos SavedPosition
	err := r.db.QueryRowContext(ctx,
		`SELECT map_id, x, y, layer FROM player_positions WHERE name = ?`, name,
	).Scan(&pos.MapID, &pos.Pos.X, &pos.Pos.Y, &pos.Pos.Layer)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка загрузки позиции игрока %s: %w", name, err)
	}
	return pos, true, nil
}

func (r *MariaPositionRepo) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM player_positions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции игрока %s: %w", name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// BatchSave сохраняет позиции в одной транзакции.
func (r *MariaPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := validateBatch(positions); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPositionSQL)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for name, pos := range positions {
		if _, err := stmt.ExecContext(ctx, name, pos.MapID, pos.Pos.X, pos.Pos.Y, pos.Pos.Layer); err != nil {
			return fmt.Errorf("ошибка сохранения позиции игрока %s в batch: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (r *MariaPositionRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
