package engine

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListenResilient: универсальный цикл для "живучей" подписки на сигналы Redis.
// Обрабатывает переподключения и логирование, разбор payload, на стороне onMessage.
func ListenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onReconnect func() error, // Callback для синхронизации при переподключении, может быть nil
	onMessage func(payload string),
) {
	for {
		if ctx.Err() != nil {
			return
		}
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}

		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				logger.Error("sync failed on reconnect", zap.Error(err))
			}
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// FormatRefreshSignal собирает payload сигнала перезагрузки: "instance:trigger".
func FormatRefreshSignal(instance, trigger string) string {
	return instance + ":" + trigger
}

// ParseRefreshSignal разбирает payload "instance:trigger".
func ParseRefreshSignal(payload string) (instance, trigger string, ok bool) {
	instance, trigger, ok = strings.Cut(payload, ":")
	if !ok || instance == "" || trigger == "" {
		return "", "", false
	}
	return instance, trigger, true
}

// RefreshSignalHandler превращает сигналы других инстансов во внеочередную загрузку.
// Собственные сигналы игнорируются: этот инстанс уже загрузил данные сам.
func RefreshSignalHandler(self string, r *Refresher, logger *zap.Logger) func(payload string) {
	return func(payload string) {
		instance, trigger, ok := ParseRefreshSignal(payload)
		if !ok {
			logger.Error("invalid signal format", zap.String("payload", payload))
			return
		}
		if instance == self {
			return
		}
		logger.Info("refresh requested by another instance",
			zap.String("instance", instance), zap.String("trigger", trigger))
		r.Trigger(TriggerCluster)
	}
}
