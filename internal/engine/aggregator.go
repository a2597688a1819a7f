package engine

/*
Файл aggregator.go: корневой компонент Trust Center: загрузка и публикация снапшота.

Цикл загрузки:
  - Пять артефактов запрашиваются параллельно (errgroup без отмены: ждем, пока завершатся все).
  - Обработка строго последовательная и в фиксированном порядке:
    boundary -> metrics -> history -> validations -> register, затем нормализация записей.
  - Опциональные источники при отказе деградируют до "нет данных", отказ основного файла
    валидаций фатален для загрузки.
  - Снапшот публикуется целиком (замена указателя под RWMutex), после публикации не меняется.

Перекрывающиеся загрузки (таймер + ручной reload) не сериализуются: побеждает та,
что опубликовала последней.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/trust-center/internal/audit"
	"github.com/xela07ax/trust-center/internal/connectors"
	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/validation"
)

// Имена артефактов относительно базового пути источника.
const (
	ArtifactValidations = "unified_ksi_validations.json"
	ArtifactRegister    = "cli_command_register.json"
	ArtifactHistory     = "ksi_history.jsonl"
	ArtifactBoundary    = "mas_boundary.json"
	ArtifactMetrics     = "metrics_history.jsonl"
)

// Триггеры загрузки.
const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
	TriggerCluster = "cluster"
)

var (
	ErrPrimarySource = errors.New("primary validation source failed")
	ErrNormalization = errors.New("normalization failed")

	errNoObjects = errors.New("no parseable objects in non-empty body")
)

// Notifier получает каждый опубликованный снапшот вместе с предыдущим.
// prev == nil для первой публикации.
type Notifier interface {
	SnapshotPublished(ctx context.Context, prev, next *domain.Snapshot)
}

type Journal interface {
	Log(event audit.LoadEvent)
}

type fetchResult struct {
	body []byte
	err  error
}

type Aggregator struct {
	source    Source
	clock     Clock
	journal   Journal
	notifiers []Notifier
	metrics   *Metrics
	logger    *zap.Logger

	mu          sync.RWMutex
	current     *domain.Snapshot
	lastSuccess time.Time
	lastErr     error

	inFlight atomic.Int32
}

type AggregatorOption func(*Aggregator)

func WithClock(c Clock) AggregatorOption {
	return func(a *Aggregator) { a.clock = c }
}

func WithJournal(j Journal) AggregatorOption {
	return func(a *Aggregator) { a.journal = j }
}

func WithNotifiers(n ...Notifier) AggregatorOption {
	return func(a *Aggregator) { a.notifiers = append(a.notifiers, n...) }
}

func WithMetrics(m *Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func NewAggregator(source Source, logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		source: source,
		clock:  SystemClock{},
		logger: logger.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = NewMetrics(nil)
	}
	return a
}

// Snapshot возвращает последний опубликованный снапшот (nil до первой успешной загрузки).
func (a *Aggregator) Snapshot() *domain.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// LastSuccess: момент последней успешной публикации, нулевое время если ее не было.
func (a *Aggregator) LastSuccess() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSuccess
}

// LastError: ошибка последней загрузки (nil, если последняя загрузка успешна).
func (a *Aggregator) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Loading сообщает, идет ли сейчас хотя бы одна загрузка.
func (a *Aggregator) Loading() bool {
	return a.inFlight.Load() > 0
}

// Restore кладет снапшот из кэша, если своего еще нет. Используется при прогреве.
func (a *Aggregator) Restore(s *domain.Snapshot) bool {
	if s == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return false
	}
	a.current = s
	a.lastSuccess = s.LoadedAt
	return true
}

// Load выполняет полный цикл загрузки и публикует новый снапшот.
// При ошибке ничего не публикуется, предыдущий снапшот остается на месте.
func (a *Aggregator) Load(ctx context.Context, trigger string) (*domain.Snapshot, error) {
	a.inFlight.Add(1)
	a.metrics.LoadsInFlight.Inc()
	defer func() {
		a.inFlight.Add(-1)
		a.metrics.LoadsInFlight.Dec()
	}()

	start := a.clock.Now()
	traceID := extractTraceID(ctx)
	log := a.logger.With(zap.String("trace_id", traceID), zap.String("trigger", trigger))

	snap, degraded, err := a.build(ctx, traceID, log)

	event := audit.LoadEvent{
		TraceID:         traceID,
		Trigger:         trigger,
		StartedAt:       start,
		DurationMs:      a.clock.Now().Sub(start).Milliseconds(),
		DegradedSources: degraded,
		Status:          audit.LoadSuccess,
	}
	duration := a.clock.Now().Sub(start).Seconds()

	if err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()

		event.Status = audit.LoadFailed
		event.Error = err.Error()
		a.logJournal(event)
		a.metrics.LoadsTotal.WithLabelValues(trigger, audit.LoadFailed).Inc()
		a.metrics.LoadDuration.WithLabelValues(trigger, audit.LoadFailed).Observe(duration)

		log.Error("snapshot load failed, previous snapshot retained", zap.Error(err))
		return nil, err
	}

	snap.LoadedAt = a.clock.Now()
	prev := a.publish(snap)

	event.RecordCount = len(snap.Records)
	event.Score = snap.Metrics.Score
	a.logJournal(event)
	a.metrics.LoadsTotal.WithLabelValues(trigger, audit.LoadSuccess).Inc()
	a.metrics.LoadDuration.WithLabelValues(trigger, audit.LoadSuccess).Observe(duration)
	a.metrics.observeSnapshot(snap)

	log.Info("snapshot published",
		zap.Int("records", len(snap.Records)),
		zap.Float64("score", snap.Metrics.Score),
		zap.Strings("degraded", degraded),
	)

	for _, n := range a.notifiers {
		n.SnapshotPublished(ctx, prev, snap)
	}
	return snap, nil
}

func (a *Aggregator) publish(s *domain.Snapshot) *domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.current
	a.current = s
	a.lastSuccess = s.LoadedAt
	a.lastErr = nil
	return prev
}

func (a *Aggregator) logJournal(event audit.LoadEvent) {
	if a.journal != nil {
		a.journal.Log(event)
	}
}

// fetchAll запрашивает все артефакты параллельно и ждет завершения каждого.
func (a *Aggregator) fetchAll(ctx context.Context) map[string]fetchResult {
	names := []string{ArtifactValidations, ArtifactRegister, ArtifactHistory, ArtifactBoundary, ArtifactMetrics}
	results := make([]fetchResult, len(names))

	// Без errgroup.WithContext: отказ одного источника не должен отменять остальные
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			body, err := a.source.Fetch(ctx, name)
			results[i] = fetchResult{body: body, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]fetchResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func (a *Aggregator) build(ctx context.Context, traceID string, log *zap.Logger) (*domain.Snapshot, []string, error) {
	fetched := a.fetchAll(ctx)
	degraded := make([]string, 0)

	optional := func(name string) ([]byte, bool) {
		r := fetched[name]
		if r.err == nil {
			a.metrics.SourceFetches.WithLabelValues(name, "ok").Inc()
			return r.body, true
		}
		degraded = append(degraded, name)
		if connectors.IsUnavailable(r.err) {
			a.metrics.SourceFetches.WithLabelValues(name, "absent").Inc()
			log.Info("optional source absent", zap.String("source", name), zap.Error(r.err))
		} else {
			a.metrics.SourceFetches.WithLabelValues(name, "error").Inc()
			log.Warn("optional source failed, continuing without it", zap.String("source", name), zap.Error(r.err))
		}
		return nil, false
	}
	markBroken := func(name string, err error) {
		degraded = append(degraded, name)
		log.Warn("optional source unparseable, continuing without it", zap.String("source", name), zap.Error(err))
	}

	snap := &domain.Snapshot{
		TraceID:        traceID,
		History:        []domain.HistoryPoint{},
		MetricsHistory: []domain.MetricsPoint{},
	}

	// 1. Boundary: непрозрачные данные, проверяем только что это JSON
	if body, ok := optional(ArtifactBoundary); ok {
		if json.Valid(body) {
			snap.Boundary = json.RawMessage(body)
		} else {
			markBroken(ArtifactBoundary, errors.New("invalid json"))
		}
	}

	// 2. Metrics history, JSONL с гарантированными переводами строк
	if body, ok := optional(ArtifactMetrics); ok {
		objs, dropped := validation.ParseLines(body)
		if dropped > 0 {
			a.metrics.DroppedFragments.WithLabelValues(ArtifactMetrics).Add(float64(dropped))
			log.Debug("dropped malformed lines", zap.String("source", ArtifactMetrics), zap.Int("count", dropped))
		}
		if len(objs) == 0 && len(bytes.TrimSpace(body)) > 0 {
			markBroken(ArtifactMetrics, errNoObjects)
		}
		snap.MetricsHistory = validation.DedupMetrics(validation.MetricsFromRaw(objs))
	}

	// 3. History: поток объектов без гарантии переводов строк
	if body, ok := optional(ArtifactHistory); ok {
		objs := validation.ParseStream(string(body))
		if len(objs) == 0 && len(bytes.TrimSpace(body)) > 0 {
			markBroken(ArtifactHistory, errNoObjects)
		}
		snap.History = validation.DedupHistory(validation.HistoryFromRaw(objs))
	}

	// 4. Primary: единственный обязательный источник
	primary := fetched[ArtifactValidations]
	if primary.err != nil {
		a.metrics.SourceFetches.WithLabelValues(ArtifactValidations, "error").Inc()
		return nil, degraded, fmt.Errorf("%w: %w", ErrPrimarySource, primary.err)
	}
	doc, err := validation.DecodeUnified(primary.body)
	if err != nil {
		a.metrics.SourceFetches.WithLabelValues(ArtifactValidations, "error").Inc()
		return nil, degraded, fmt.Errorf("%w: %w", ErrPrimarySource, err)
	}
	a.metrics.SourceFetches.WithLabelValues(ArtifactValidations, "ok").Inc()

	// 5. Register
	var reg validation.Register
	if body, ok := optional(ArtifactRegister); ok {
		if reg, err = validation.DecodeRegister(body); err != nil {
			markBroken(ArtifactRegister, err)
			reg = nil
		}
	}

	// 6. Нормализация записей и агрегаты
	if err := a.normalize(snap, doc, reg, log); err != nil {
		return nil, degraded, err
	}
	snap.DegradedSources = degraded
	return snap, degraded, nil
}

func (a *Aggregator) normalize(snap *domain.Snapshot, doc *validation.UnifiedDocument, reg validation.Register, log *zap.Logger) (err error) {
	// Паника на неожиданной форме данных прерывает загрузку, а не процесс
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrNormalization, r)
		}
	}()

	records, skipped := validation.NormalizeRecords(doc.Records, reg)
	if skipped > 0 {
		log.Warn("records without identifier skipped", zap.Int("count", skipped))
	}

	snap.Records = records
	snap.Metrics = validation.ComputeMetrics(records)
	snap.Metadata = validation.BuildMetadata(doc.Metadata, snap.Metrics)
	snap.Trend = validation.TrendOf(snap.History)
	return nil
}
