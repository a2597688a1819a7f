package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore: кольцевой буфер последних событий, когда PostgreSQL не настроен.
type MemoryStore struct {
	mu     sync.RWMutex
	events []LoadEvent
	limit  int
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 200
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) WriteBatch(_ context.Context, events []LoadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	if over := len(s.events) - s.limit; over > 0 {
		s.events = append([]LoadEvent(nil), s.events[over:]...)
	}
	return nil
}

// FetchEvents возвращает последние события, новые первыми.
func (s *MemoryStore) FetchEvents(_ context.Context, limit int) ([]LoadEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]LoadEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Stats считает сводку по событиям, начатым не раньше since.
func (s *MemoryStore) Stats(_ context.Context, since time.Time) (LoadStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := LoadStats{Since: since}
	durations := make([]int64, 0, len(s.events))
	for _, e := range s.events {
		if e.StartedAt.Before(since) {
			continue
		}
		st.Total++
		if e.Status == LoadFailed {
			st.Failed++
		}
		if len(e.DegradedSources) > 0 {
			st.Degraded++
		}
		durations = append(durations, e.DurationMs)
	}
	st.P95DurationMs = percentile(durations, 0.95)
	return st, nil
}

// percentile: линейная интерполяция, как PERCENTILE_CONT в PostgreSQL.
func percentile(values []int64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	pos := p * float64(len(values)-1)
	lo := int(pos)
	if lo+1 >= len(values) {
		return float64(values[lo])
	}
	frac := pos - float64(lo)
	return float64(values[lo]) + frac*float64(values[lo+1]-values[lo])
}
