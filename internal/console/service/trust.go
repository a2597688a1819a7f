package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/engine"
)

var (
	// ErrNoSnapshot: ни одна загрузка еще не завершилась успешно.
	ErrNoSnapshot = errors.New("no snapshot loaded yet")
	// ErrNotFound: KSI с таким ID нет в текущем снапшоте.
	ErrNotFound = errors.New("validation not found")
	// ErrInvalidFilter: неизвестный статус в фильтре.
	ErrInvalidFilter = errors.New("invalid status filter")
)

// SnapshotLoader: то, что сервису нужно от агрегатора.
type SnapshotLoader interface {
	Snapshot() *domain.Snapshot
	LastSuccess() time.Time
	Loading() bool
	Load(ctx context.Context, trigger string) (*domain.Snapshot, error)
}

// RefreshBroadcaster рассылает сигнал перезагрузки остальным инстансам.
type RefreshBroadcaster interface {
	Broadcast(ctx context.Context, trigger string) error
}

type TrustService struct {
	loader      SnapshotLoader
	broadcaster RefreshBroadcaster // может быть nil (без Redis)
	logger      *zap.Logger
}

func NewTrustService(loader SnapshotLoader, broadcaster RefreshBroadcaster, logger *zap.Logger) *TrustService {
	return &TrustService{loader: loader, broadcaster: broadcaster, logger: logger.Named("trust_service")}
}

func (s *TrustService) current() (*domain.Snapshot, error) {
	snap := s.loader.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Summary: анонимное представление. Доступно и до первой загрузки (нулевые метрики).
func (s *TrustService) Summary() domain.PublicSummary {
	sum := domain.PublicSummary{
		LastSuccess: s.loader.LastSuccess(),
		Loading:     s.loader.Loading(),
		Trend:       domain.TrendStable,
	}
	if snap := s.loader.Snapshot(); snap != nil {
		sum.Metrics = snap.Metrics
		sum.Metadata = snap.Metadata
		sum.Trend = snap.Trend
		sum.LoadedAt = snap.LoadedAt
	}
	return sum
}

func (s *TrustService) Snapshot() (*domain.Snapshot, error) {
	return s.current()
}

// Validations возвращает записи, отфильтрованные по статусу. Пустой фильтр: все записи.
func (s *TrustService) Validations(status string) ([]domain.ValidationRecord, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return snap.Records, nil
	}
	want := domain.Status(status)
	switch want {
	case domain.StatusPassed, domain.StatusFailed, domain.StatusWarning, domain.StatusInfo, domain.StatusUnknown:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, status)
	}

	out := make([]domain.ValidationRecord, 0)
	for _, r := range snap.Records {
		if r.Status == want {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *TrustService) Validation(id string) (domain.ValidationRecord, error) {
	snap, err := s.current()
	if err != nil {
		return domain.ValidationRecord{}, err
	}
	r, ok := snap.Record(id)
	if !ok {
		return domain.ValidationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *TrustService) History() ([]domain.HistoryPoint, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.History, nil
}

func (s *TrustService) MetricsHistory() ([]domain.MetricsPoint, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.MetricsHistory, nil
}

// Boundary отдает mas_boundary.json как есть; null, если источник деградировал.
func (s *TrustService) Boundary() (json.RawMessage, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if len(snap.Boundary) == 0 {
		return json.RawMessage("null"), nil
	}
	return snap.Boundary, nil
}

// Reload запускает ручную загрузку и ждет ее результата.
// После успеха просит остальные инстансы перезагрузиться тоже.
func (s *TrustService) Reload(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.loader.Load(ctx, engine.TriggerManual)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, engine.TriggerManual); err != nil {
			s.logger.Warn("failed to broadcast refresh signal", zap.Error(err))
		}
	}
	return snap, nil
}
