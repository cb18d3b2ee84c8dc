package storage

import (
	"context"
	"time"

	"github.com/annel0/tileworld/internal/logging"
)

// SnapshotFunc возвращает текущие позиции онлайн-игроков.
type SnapshotFunc func() map[string]SavedPosition

// Autosave периодически сохраняет позиции до отмены ctx.
// При отмене выполняет последнее сохранение с отдельным таймаутом.
func Autosave(ctx context.Context, repo PositionRepo, interval time.Duration, snapshot SnapshotFunc) {
	log := logging.GetStorageLogger()
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		positions := snapshot()
		if len(positions) == 0 {
			return
		}
		if err := repo.BatchSave(ctx, positions); err != nil {
			log.Error("❌ Автосохранение позиций: %v", err)
			return
		}
		log.Debug("💾 Сохранено позиций: %d", len(positions))
	}

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(final)
			cancel()
			return
		case <-ticker.C:
			flush(ctx)
		}
	}
}
