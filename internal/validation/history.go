package validation

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/trust-center/internal/domain"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	historyTimeKeys = []string{"timestamp", "date", "validation_date"}
	rateKeys        = []string{"compliance_rate", "pass_rate", "score"}
	passedKeys      = []string{"passed", "passed_count", "passed_validations"}
	failedKeys      = []string{"failed", "failed_count", "failed_validations"}
	weekKeys        = []string{"week", "week_label"}
)

// ParseTimestamp разбирает строку или число (unix-секунды/миллисекунды) в момент времени.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if !epochString(s) {
			return time.Time{}, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n), true
		}
	case float64:
		return fromEpoch(t), true
	}
	return time.Time{}, false
}

// epochString: строка похожа на unix-время, а не на год или дату вида 20240102.
// Целая часть из 10+ цифр (секунды начиная с сентября 2001).
func epochString(s string) bool {
	intPart, _, _ := strings.Cut(s, ".")
	if len(intPart) < 10 {
		return false
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromEpoch(n float64) time.Time {
	// Значения больше 1e12, миллисекунды
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// HistoryFromRaw строит точки истории. Записи без валидного timestamp отбрасываются.
func HistoryFromRaw(objs []map[string]any) []domain.HistoryPoint {
	points := make([]domain.HistoryPoint, 0, len(objs))
	for _, obj := range objs {
		v, _ := lookup(obj, historyTimeKeys)
		ts, ok := ParseTimestamp(v)
		if !ok {
			continue
		}
		p := domain.HistoryPoint{Timestamp: ts}
		p.PassedCount, _ = lookupInt(obj, passedKeys)
		p.FailedCount, _ = lookupInt(obj, failedKeys)
		if rate, ok := lookupFloat(obj, rateKeys); ok {
			p.ComplianceRate = rate
		} else {
			p.ComplianceRate = Score(p.PassedCount, p.PassedCount+p.FailedCount)
		}
		points = append(points, p)
	}
	return points
}

// DedupHistory: last-write-wins по моменту времени, затем сортировка по возрастанию.
func DedupHistory(points []domain.HistoryPoint) []domain.HistoryPoint {
	out := make([]domain.HistoryPoint, 0, len(points))
	index := make(map[int64]int, len(points))
	for _, p := range points {
		key := p.Timestamp.UnixNano()
		if i, ok := index[key]; ok {
			out[i] = p
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b domain.HistoryPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// MetricsFromRaw строит недельные точки. Записи без метки недели отбрасываются.
func MetricsFromRaw(objs []map[string]any) []domain.MetricsPoint {
	points := make([]domain.MetricsPoint, 0, len(objs))
	for _, obj := range objs {
		week := strings.TrimSpace(lookupString(obj, weekKeys))
		if week == "" {
			continue
		}
		p := domain.MetricsPoint{Week: week, Fields: obj}
		if v, ok := lookup(obj, historyTimeKeys); ok {
			if ts, ok := ParseTimestamp(v); ok {
				p.Timestamp = &ts
			}
		}
		p.PassedCount, _ = lookupInt(obj, passedKeys)
		p.FailedCount, _ = lookupInt(obj, failedKeys)
		if rate, ok := lookupFloat(obj, rateKeys); ok {
			p.ComplianceRate = rate
		} else {
			p.ComplianceRate = Score(p.PassedCount, p.PassedCount+p.FailedCount)
		}
		points = append(points, p)
	}
	return points
}

// DedupMetrics: last-write-wins по метке недели. Сортировка по timestamp, если он есть
// у всех точек, иначе по метке недели (ISO-метки вида 2024-W05 сортируются лексикографически).
func DedupMetrics(points []domain.MetricsPoint) []domain.MetricsPoint {
	out := make([]domain.MetricsPoint, 0, len(points))
	index := make(map[string]int, len(points))
	for _, p := range points {
		if i, ok := index[p.Week]; ok {
			out[i] = p
			continue
		}
		index[p.Week] = len(out)
		out = append(out, p)
	}

	allTimed := true
	for _, p := range out {
		if p.Timestamp == nil {
			allTimed = false
			break
		}
	}
	slices.SortStableFunc(out, func(a, b domain.MetricsPoint) int {
		if allTimed {
			return a.Timestamp.Compare(*b.Timestamp)
		}
		return strings.Compare(a.Week, b.Week)
	})
	return out
}

// TrendOf сравнивает две последние точки отсортированной истории.
func TrendOf(history []domain.HistoryPoint) domain.Trend {
	if len(history) < 2 {
		return domain.TrendStable
	}
	last, prev := history[len(history)-1], history[len(history)-2]
	switch {
	case last.ComplianceRate > prev.ComplianceRate:
		return domain.TrendUp
	case last.ComplianceRate < prev.ComplianceRate:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}
