package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/trust-center/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS load_events (
	id               UUID PRIMARY KEY,
	trace_id         TEXT NOT NULL,
	trigger          TEXT NOT NULL,
	instance         TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	status           TEXT NOT NULL,
	record_count     INTEGER NOT NULL DEFAULT 0,
	score            DOUBLE PRECISION NOT NULL DEFAULT 0,
	degraded_sources JSONB NOT NULL DEFAULT '[]',
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS load_events_started_at_idx ON load_events (started_at DESC);
`

// Количество колонок в таблице load_events
const numFields = 11

// JournalRepo хранит журнал загрузок в PostgreSQL.
type JournalRepo struct {
	db *sql.DB
}

// NewJournalRepo открывает пул. Соединение не проверяется: в main вызывается Ping.
func NewJournalRepo(connString string, maxConns, minConns int) (*JournalRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(minConns, 1))
	db.SetConnMaxLifetime(5 * time.Minute)
	return &JournalRepo{db: db}, nil
}

// Ping проверяет доступность базы при старте
func (r *JournalRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate создает таблицу журнала, если ее еще нет.
func (r *JournalRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *JournalRepo) Close() error {
	return r.db.Close()
}

func (r *JournalRepo) WriteBatch(ctx context.Context, events []audit.LoadEvent) error {
	query, vals, err := buildInsert(events)
	if err != nil || query == "" {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: write batch of %d: %w", len(events), err)
	}
	return nil
}

// buildInsert строит один INSERT на всю пачку. Повторная запись того же id игнорируется.
func buildInsert(events []audit.LoadEvent) (string, []any, error) {
	if len(events) == 0 {
		return "", nil, nil
	}

	var sb strings.Builder
	vals := make([]any, 0, len(events)*numFields)
	for i, e := range events {
		degraded := e.DegradedSources
		if degraded == nil {
			degraded = []string{}
		}
		ds, err := json.Marshal(degraded)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: marshal degraded sources: %w", err)
		}

		if i > 0 {
			sb.WriteByte(',')
		}
		p := i * numFields
		sb.WriteByte('(')
		for f := 1; f <= numFields; f++ {
			if f > 1 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", p+f)
		}
		sb.WriteByte(')')

		vals = append(vals,
			e.ID, e.TraceID, e.Trigger, e.Instance, e.StartedAt,
			e.Status, e.RecordCount, e.Score, ds, e.DurationMs, e.Error,
		)
	}

	query := "INSERT INTO load_events (id, trace_id, trigger, instance, started_at, status, record_count, score, degraded_sources, duration_ms, error) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"
	return query, vals, nil
}

// FetchEvents возвращает последние события, новые первыми.
func (r *JournalRepo) FetchEvents(ctx context.Context, limit int) ([]audit.LoadEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trace_id, trigger, instance, started_at, status, record_count, score, degraded_sources, duration_ms, error
		FROM load_events
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.LoadEvent, 0, limit)
	for rows.Next() {
		var (
			e  audit.LoadEvent
			ds []byte
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.Trigger, &e.Instance, &e.StartedAt,
			&e.Status, &e.RecordCount, &e.Score, &ds, &e.DurationMs, &e.Error); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		if len(ds) > 0 {
			_ = json.Unmarshal(ds, &e.DegradedSources)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
