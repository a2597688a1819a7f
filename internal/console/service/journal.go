package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/trust-center/internal/audit"
)

// LoadEventProvider описывает контракт для чтения журнала загрузок.
// Реализуется audit.MemoryStore и postgres.JournalRepo.
type LoadEventProvider interface {
	FetchEvents(ctx context.Context, limit int) ([]audit.LoadEvent, error)
	Stats(ctx context.Context, since time.Time) (audit.LoadStats, error)
}

type JournalService struct {
	repo LoadEventProvider
	now  func() time.Time
}

func NewJournalService(repo LoadEventProvider) *JournalService {
	return &JournalService{repo: repo, now: time.Now}
}

const maxEvents = 500

// Recent возвращает последние загрузки, новые первыми.
func (s *JournalService) Recent(ctx context.Context, limit int) ([]audit.LoadEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, maxEvents)

	events, err := s.repo.FetchEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("journal_service: failed to fetch events: %w", err)
	}
	return events, nil
}

// Stats считает сводку за окно window, отсчитанное от текущего момента.
func (s *JournalService) Stats(ctx context.Context, window time.Duration) (audit.LoadStats, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	st, err := s.repo.Stats(ctx, s.now().Add(-window))
	if err != nil {
		return st, fmt.Errorf("journal_service: failed to compute stats: %w", err)
	}
	return st, nil
}
