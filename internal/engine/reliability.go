package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/trust-center/internal/connectors"
)

// Source: поставщик сырых артефактов (HTTP, каталог, память).
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

type ReliabilityConfig struct {
	Attempts       uint
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	BreakerTimeout time.Duration
	BreakerFails   uint32
}

func (c ReliabilityConfig) withDefaults() ReliabilityConfig {
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.BreakerFails == 0 {
		c.BreakerFails = 5
	}
	return c
}

// ReliableSource оборачивает Source: rate limit -> circuit breaker (на каждый артефакт) -> retry с таймаутом.
type ReliableSource struct {
	next    Source
	cfg     ReliabilityConfig
	limiter *rate.Limiter
	metrics *Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewReliableSource(next Source, cfg ReliabilityConfig, metrics *Metrics, logger *zap.Logger) *ReliableSource {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ReliableSource{
		next:     next,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics:  metrics,
		logger:   logger.Named("reliability"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (w *ReliableSource) breaker(name string) *gobreaker.CircuitBreaker {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cb, ok := w.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     w.cfg.BreakerTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= w.cfg.BreakerFails
		},
		// Отсутствующий артефакт: нормальное состояние, а не отказ хостинга
		IsSuccessful: func(err error) bool {
			return err == nil || connectors.IsUnavailable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.logger.Warn("circuit breaker state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			w.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	w.breakers[name] = cb
	return cb
}

func (w *ReliableSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", name, err)
	}

	var data []byte

	// 2. Circuit Breaker
	_, err := w.breaker(name).Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.cfg.Attempts),
			retry.RetryIf(connectors.IsRetryable),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если хостинг вернул Retry-After (429/503), ждем ровно столько
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка), стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
			defer cancel()

			var callErr error
			data, callErr = w.next.Fetch(tCtx, name)
			return callErr
		})

		return nil, retryErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
