package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
)

// SnapshotCache: L2-кэш снапшота (Redis), общий для всех инстансов.
type SnapshotCache interface {
	Latest(ctx context.Context) (*domain.Snapshot, error)
}

// WarmupSnapshot прогревает L1 (память агрегатора) из L2 (Redis), чтобы API отвечал
// данными еще до завершения первой загрузки из источника.
// Промах кэша не ошибка: (nil, nil) от Latest означает пустой Redis.
func WarmupSnapshot(
	ctx context.Context,
	cache SnapshotCache,
	logger *zap.Logger,
	restore func(*domain.Snapshot) bool, // Callback для обновления локального снапшота
) error {
	snap, err := cache.Latest(ctx)
	if err != nil {
		logger.Warn("could not read cached snapshot, waiting for first load", zap.Error(err))
		return err
	}
	if snap == nil {
		logger.Info("snapshot cache is empty, waiting for first load")
		return nil
	}

	if restore(snap) {
		logger.Info("snapshot restored from cache",
			zap.Time("loaded_at", snap.LoadedAt),
			zap.Int("records", len(snap.Records)),
			zap.String("trace_id", snap.TraceID),
		)
	}
	return nil
}
