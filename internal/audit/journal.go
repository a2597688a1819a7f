package audit

/*
Файл journal.go реализует журнал загрузок (Load Journal), асинхронную запись
истории циклов загрузки снапшота.

Ключевые особенности:
- Non-blocking Logging: агрегатор отдает событие в буферизированный канал и не ждет БД.
- Batching: события копятся и пишутся пачкой по таймеру или при достижении лимита.
- Drain Pattern & Graceful Shutdown: Stop закрывает канал, воркер вычитывает остатки
  и делает финальный flush до выхода.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []LoadEvent) error
}

// BufferGauge: метрика заполненности буфера (prometheus.Gauge подходит напрямую).
type BufferGauge interface {
	Set(float64)
}

type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Instance      string
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	return c
}

type Journal struct {
	ch     chan LoadEvent
	repo   StorageInterface
	cfg    Config
	gauge  BufferGauge
	logger *zap.Logger
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// mu сериализует отправку в канал (RLock) и его закрытие (Lock)
	mu       sync.RWMutex
	isClosed bool
}

func NewJournal(repo StorageInterface, cfg Config, gauge BufferGauge, logger *zap.Logger) *Journal {
	cfg = cfg.withDefaults()
	return &Journal{
		ch:     make(chan LoadEvent, cfg.BufferSize),
		repo:   repo,
		cfg:    cfg,
		gauge:  gauge,
		logger: logger.Named("journal"),
	}
}

func (j *Journal) Start() {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go j.worker()
	})
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.logger.Info("stopping journal: closing channel and flushing buffer...")
		j.mu.Lock()
		j.isClosed = true
		close(j.ch)
		j.mu.Unlock()

		j.wg.Wait()
		j.logger.Info("journal stopped gracefully")
	})
}

func (j *Journal) Log(event LoadEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = time.Now()
	}
	if event.Instance == "" {
		event.Instance = j.cfg.Instance
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.isClosed {
		j.logger.Warn("load event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении событие уходит только в лог
	select {
	case j.ch <- event:
		j.reportFill()
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("trace_id", event.TraceID),
			zap.String("status", event.Status),
		)
	}
}

func (j *Journal) reportFill() {
	if j.gauge != nil {
		j.gauge.Set(float64(len(j.ch)))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]LoadEvent, 0, j.cfg.BatchSize)
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст может быть уже закрыт
			if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
				j.logger.Error("journal flush failed", zap.Error(err), zap.Int("events", len(batch)))
			}
			batch = batch[:0]
		}
		j.reportFill()
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				flush() // Финальный сброс
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
