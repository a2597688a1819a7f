package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/trust-center/internal/audit"
)

// Stats собирает сводку по журналу загрузок.
// PERCENTILE_CONT дает честный P95 длительности загрузки.
func (r *JournalRepo) Stats(ctx context.Context, since time.Time) (audit.LoadStats, error) {
	st := audit.LoadStats{Since: since}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE jsonb_array_length(degraded_sources) > 0),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM load_events
		WHERE started_at >= $1`, since).Scan(&st.Total, &st.Failed, &st.Degraded, &st.P95DurationMs)
	if err != nil {
		return st, fmt.Errorf("postgres: load stats: %w", err)
	}
	return st, nil
}
