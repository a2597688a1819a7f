package risk

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
)

// AlertPublisher описывает, куда отправлять найденные регрессии (Redis Pub/Sub, вебхук).
type AlertPublisher interface {
	PublishRegressions(ctx context.Context, regs []domain.Regression) error
}

// Analyzer сравнивает соседние снапшоты и сообщает о KSI, перешедших в failed.
// Реализует engine.Notifier.
type Analyzer struct {
	publisher AlertPublisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewAnalyzer(publisher AlertPublisher, logger *zap.Logger) *Analyzer {
	return &Analyzer{publisher: publisher, now: time.Now, logger: logger.Named("analyzer")}
}

// Regressions возвращает KSI, которые в next имеют статус failed, а в prev нет.
// Первый снапшот (prev == nil) регрессий не дает: сравнивать не с чем.
// KSI, которого не было в prev, считается регрессией только если он сразу failed.
func Regressions(prev, next *domain.Snapshot, at time.Time) []domain.Regression {
	if prev == nil || next == nil {
		return nil
	}

	wasFailed := prev.FailedIDs()
	out := make([]domain.Regression, 0)
	for _, r := range next.Records {
		if r.Status != domain.StatusFailed {
			continue
		}
		if _, ok := wasFailed[r.ID]; ok {
			continue
		}
		out = append(out, domain.Regression{
			ID:          r.ID,
			Category:    r.Category,
			Description: r.Description,
			Reason:      r.Reason,
			DetectedAt:  at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Analyzer) SnapshotPublished(ctx context.Context, prev, next *domain.Snapshot) {
	regs := Regressions(prev, next, a.now())
	if len(regs) == 0 {
		return
	}

	ids := make([]string, len(regs))
	for i, r := range regs {
		ids[i] = r.ID
	}
	a.logger.Warn("COMPLIANCE REGRESSION DETECTED",
		zap.Strings("ksi", ids),
		zap.Float64("score", next.Metrics.Score),
		zap.Float64("previous_score", prev.Metrics.Score),
		zap.String("trace_id", next.TraceID),
	)

	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishRegressions(ctx, regs); err != nil {
		a.logger.Error("failed to publish regression alert", zap.Error(err))
	}
}
