package audit

import "time"

const (
	LoadSuccess = "success"
	LoadFailed  = "failed"
)

// LoadEvent: запись журнала об одном цикле загрузки снапшота.
type LoadEvent struct {
	ID        string    `json:"id"`       // UUID события
	TraceID   string    `json:"trace_id"` // Сквозной ID загрузки
	Trigger   string    `json:"trigger"`  // startup | timer | manual | cluster
	Instance  string    `json:"instance"` // Какой инстанс загружал
	StartedAt time.Time `json:"started_at"`

	// Результат
	Status          string   `json:"status"` // success | failed
	RecordCount     int      `json:"record_count"`
	Score           float64  `json:"score"`
	DegradedSources []string `json:"degraded_sources"`
	DurationMs      int64    `json:"duration_ms"`
	Error           string   `json:"error,omitempty"`
}

// LoadStats: сводка по журналу загрузок за окно времени.
type LoadStats struct {
	Since         time.Time `json:"since"`
	Total         int       `json:"total"`
	Failed        int       `json:"failed"`
	Degraded      int       `json:"degraded"`
	P95DurationMs float64   `json:"p95_duration_ms"`
}
