package postgres

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/trust-center/internal/audit"
)

func TestBuildInsertEmpty(t *testing.T) {
	q, vals, err := buildInsert(nil)
	require.NoError(t, err)
	assert.Empty(t, q)
	assert.Nil(t, vals)
}

func TestBuildInsertPlaceholders(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []audit.LoadEvent{
		{ID: "a", TraceID: "t1", Trigger: "timer", Status: audit.LoadSuccess, StartedAt: at, DegradedSources: []string{"ksi_history.jsonl"}},
		{ID: "b", TraceID: "t2", Trigger: "manual", Status: audit.LoadFailed, StartedAt: at, Error: "boom"},
	}

	q, vals, err := buildInsert(events)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO load_events"))
	assert.Contains(t, q, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11),($12,")
	assert.Contains(t, q, "$22)")
	assert.NotContains(t, q, "$23")
	assert.True(t, strings.HasSuffix(q, "ON CONFLICT (id) DO NOTHING"))
	require.Len(t, vals, 2*numFields)

	assert.Equal(t, "a", vals[0])
	assert.JSONEq(t, `["ksi_history.jsonl"]`, string(vals[8].([]byte)))
	assert.Equal(t, "b", vals[numFields])
	// nil превращается в пустой массив, колонка NOT NULL
	assert.Equal(t, json.RawMessage(`[]`), json.RawMessage(vals[numFields+8].([]byte)))
	assert.Equal(t, "boom", vals[2*numFields-1])
}
