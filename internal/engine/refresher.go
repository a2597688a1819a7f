package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
)

type Loader interface {
	Load(ctx context.Context, trigger string) (*domain.Snapshot, error)
}

// Refresher запускает загрузку при старте, по таймеру и по внеочередному сигналу.
// Все пути ведут в один и тот же Loader.Load.
type Refresher struct {
	loader   Loader
	interval time.Duration
	clock    Clock
	manual   chan string
	logger   *zap.Logger
}

func NewRefresher(loader Loader, interval time.Duration, clock Clock, logger *zap.Logger) *Refresher {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Refresher{
		loader:   loader,
		interval: interval,
		clock:    clock,
		manual:   make(chan string, 1),
		logger:   logger.Named("refresher"),
	}
}

// Trigger ставит внеочередную загрузку. Если одна уже ждет в очереди, новая не добавляется.
func (r *Refresher) Trigger(trigger string) bool {
	select {
	case r.manual <- trigger:
		return true
	default:
		return false
	}
}

// Run блокируется до отмены ctx. interval <= 0 отключает периодическую загрузку.
func (r *Refresher) Run(ctx context.Context) {
	r.load(ctx, TriggerStartup)

	var tick <-chan time.Time
	if r.interval > 0 {
		c, stop := r.clock.NewTicker(r.interval)
		defer stop()
		tick = c
	}

	r.logger.Info("refresher started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return
		case <-tick:
			r.load(ctx, TriggerTimer)
		case trigger := <-r.manual:
			r.load(ctx, trigger)
		}
	}
}

func (r *Refresher) load(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	// Ошибка уже залогирована агрегатором, предыдущий снапшот остается
	if _, err := r.loader.Load(ctx, trigger); err != nil {
		r.logger.Debug("scheduled load failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
