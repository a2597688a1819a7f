package validation

import (
	"math"

	"github.com/xela07ax/trust-center/internal/domain"
)

// Score: round(passed/total*1000)/10, т.е. процент с одним знаком; 0 при пустом total.
func Score(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*1000) / 10
}

// ComputeMetrics считает агрегаты по нормализованным записям.
// warning и info, это passed с оговорками: входят в PassedCount, в Total отдельно не идут.
func ComputeMetrics(records []domain.ValidationRecord) domain.AggregateMetrics {
	var m domain.AggregateMetrics
	for _, r := range records {
		switch r.Status {
		case domain.StatusPassed:
			m.PassedCount++
		case domain.StatusWarning:
			m.PassedCount++
			m.WarningCount++
		case domain.StatusInfo:
			m.PassedCount++
			m.InfoCount++
		case domain.StatusFailed:
			m.FailedCount++
		default:
			m.UnknownCount++
		}
	}
	m.TotalCount = m.PassedCount + m.FailedCount
	m.Score = Score(m.PassedCount, m.TotalCount)
	return m
}

// BuildMetadata берет metadata из артефакта и дополняет отсутствующие поля из агрегатов.
func BuildMetadata(raw map[string]any, m domain.AggregateMetrics) domain.Metadata {
	md := domain.Metadata{
		ValidationDate: lookupString(raw, []string{"validation_date", "timestamp", "generated_at"}),
		ImpactLevel:    lookupString(raw, []string{"impact_level", "impact"}),
		PassRate:       m.Score,
		Passed:         m.PassedCount,
		Failed:         m.FailedCount,
		TotalValidated: m.TotalCount,
	}
	if v, ok := lookupFloat(raw, []string{"pass_rate"}); ok {
		md.PassRate = v
	}
	if v, ok := lookupInt(raw, []string{"passed"}); ok {
		md.Passed = v
	}
	if v, ok := lookupInt(raw, []string{"failed"}); ok {
		md.Failed = v
	}
	if v, ok := lookupInt(raw, []string{"total_validated", "total"}); ok {
		md.TotalValidated = v
	}
	if v, ok := raw["impact_thresholds"].(map[string]any); ok {
		md.ImpactThresholds = v
	}
	return md
}
