package domain

import (
	"encoding/json"
	"time"
)

// Trend: направление изменения compliance rate по двум последним точкам истории.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// HistoryPoint: точка временного ряда из ksi_history.jsonl.
type HistoryPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	ComplianceRate float64   `json:"compliance_rate"`
	PassedCount    int       `json:"passed"`
	FailedCount    int       `json:"failed"`
}

// MetricsPoint: недельная запись из metrics_history.jsonl, ключ: метка недели.
type MetricsPoint struct {
	Week           string         `json:"week"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
	ComplianceRate float64        `json:"compliance_rate"`
	PassedCount    int            `json:"passed"`
	FailedCount    int            `json:"failed"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// AggregateMetrics пересчитываются на каждую загрузку и никогда не сохраняются.
// Warning и Info входят в Passed, в Total не суммируются отдельно.
type AggregateMetrics struct {
	Score        float64 `json:"score"`
	PassedCount  int     `json:"passed"`
	FailedCount  int     `json:"failed"`
	WarningCount int     `json:"warning"`
	InfoCount    int     `json:"info"`
	UnknownCount int     `json:"unknown"`
	TotalCount   int     `json:"total"`
}

type Metadata struct {
	ValidationDate   string         `json:"validation_date"`
	ImpactLevel      string         `json:"impact_level"`
	PassRate         float64        `json:"pass_rate"`
	Passed           int            `json:"passed"`
	TotalValidated   int            `json:"total_validated"`
	Failed           int            `json:"failed"`
	ImpactThresholds map[string]any `json:"impact_thresholds,omitempty"`
}

// Snapshot: полный согласованный набор данных одной загрузки.
// После публикации объект неизменяем: заменяется целиком, никогда не патчится.
type Snapshot struct {
	Records         []ValidationRecord `json:"records"`
	Metrics         AggregateMetrics   `json:"metrics"`
	History         []HistoryPoint     `json:"history"`
	MetricsHistory  []MetricsPoint     `json:"metrics_history"`
	Boundary        json.RawMessage    `json:"boundary,omitempty"`
	Metadata        Metadata           `json:"metadata"`
	Trend           Trend              `json:"trend"`
	DegradedSources []string           `json:"degraded_sources"`
	TraceID         string             `json:"trace_id"`
	LoadedAt        time.Time          `json:"loaded_at"`
}

// Record ищет запись по ID. Линейный поиск, записей десятки.
func (s *Snapshot) Record(id string) (ValidationRecord, bool) {
	if s == nil {
		return ValidationRecord{}, false
	}
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return ValidationRecord{}, false
}

// FailedIDs возвращает множество KSI в статусе failed.
func (s *Snapshot) FailedIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	if s == nil {
		return ids
	}
	for _, r := range s.Records {
		if r.Status == StatusFailed {
			ids[r.ID] = struct{}{}
		}
	}
	return ids
}
