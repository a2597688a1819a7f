package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/infra"
)

const lockTTL = 30 * time.Second

// releaseLock удаляет блокировку, только если она все еще наша.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SnapshotStore: L2-кэш последнего снапшота, общий для всех инстансов.
// Читается при старте (engine.WarmupSnapshot), пишется после каждой публикации.
type SnapshotStore struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	instance string
	logger   *zap.Logger
}

func NewSnapshotStore(rdb redis.Cmdable, ttl time.Duration, instance string, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, ttl: ttl, instance: instance, logger: logger.Named("snapshot_cache")}
}

// Latest возвращает (nil, nil), если кэш пуст.
func (s *SnapshotStore) Latest(ctx context.Context) (*domain.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, infra.RedisKeySnapshotLatest).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get snapshot: %w", err)
	}
	return decodeSnapshot(raw)
}

// Store записывает снапшот. Распределенная блокировка (SetNX), чтобы в один момент
// кэш обновлял только один инстанс. Занятая блокировка не ошибка: пишет другой.
func (s *SnapshotStore) Store(ctx context.Context, snap *domain.Snapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, infra.RedisKeyLockSnapshot, s.instance, lockTTL).Result()
	if err != nil {
		return fmt.Errorf("redis: acquire snapshot lock: %w", err)
	}
	if !ok {
		s.logger.Debug("snapshot cache is being written by another instance")
		return nil
	}
	defer s.unlock(ctx)

	if err := s.rdb.Set(ctx, infra.RedisKeySnapshotLatest, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// unlock снимает блокировку. После истечения TTL ее мог взять другой инстанс, такую не трогаем.
func (s *SnapshotStore) unlock(ctx context.Context) {
	err := releaseLock.Run(ctx, s.rdb, []string{infra.RedisKeyLockSnapshot}, s.instance).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to release snapshot lock", zap.Error(err))
	}
}

// SnapshotPublished реализует engine.Notifier.
func (s *SnapshotStore) SnapshotPublished(ctx context.Context, _, next *domain.Snapshot) {
	if err := s.Store(ctx, next); err != nil {
		s.logger.Warn("failed to update snapshot cache", zap.Error(err), zap.String("trace_id", next.TraceID))
	}
}

func encodeSnapshot(snap *domain.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("redis: nil snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("redis: encode snapshot: %w", err)
	}
	return raw, nil
}

func decodeSnapshot(raw []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("redis: decode snapshot: %w", err)
	}
	if snap.DegradedSources == nil {
		snap.DegradedSources = []string{}
	}
	return &snap, nil
}
