package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/engine"
	"github.com/xela07ax/trust-center/internal/infra"
)

// AlertPublisher шлет регрессии в канал алертов.
type AlertPublisher struct {
	rdb redis.Cmdable
}

func NewAlertPublisher(rdb redis.Cmdable) *AlertPublisher {
	return &AlertPublisher{rdb: rdb}
}

func (p *AlertPublisher) PublishRegressions(ctx context.Context, regs []domain.Regression) error {
	payload, err := json.Marshal(regs)
	if err != nil {
		return fmt.Errorf("redis: encode regressions: %w", err)
	}
	if err := p.rdb.Publish(ctx, infra.RedisChanAlerts, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish alert: %w", err)
	}
	return nil
}

// RefreshBroadcaster просит остальные инстансы перезагрузить снапшот.
type RefreshBroadcaster struct {
	rdb      redis.Cmdable
	instance string
}

func NewRefreshBroadcaster(rdb redis.Cmdable, instance string) *RefreshBroadcaster {
	return &RefreshBroadcaster{rdb: rdb, instance: instance}
}

func (b *RefreshBroadcaster) Broadcast(ctx context.Context, trigger string) error {
	payload := engine.FormatRefreshSignal(b.instance, trigger)
	if err := b.rdb.Publish(ctx, infra.RedisChanSnapshotRefresh, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish refresh signal: %w", err)
	}
	return nil
}
