package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/infra"
)

func TestSnapshotEncodingKeepsPayload(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		Records: []domain.ValidationRecord{{
			ID:                 "KSI-CNA-01",
			Status:             domain.StatusPassed,
			CommandsExecuted:   2,
			SuccessfulCommands: 2,
		}},
		Metrics:         domain.AggregateMetrics{Score: 100, PassedCount: 1, TotalCount: 1},
		History:         []domain.HistoryPoint{{Timestamp: at, ComplianceRate: 90}},
		Boundary:        json.RawMessage(`{"services":["s3"]}`),
		Trend:           domain.TrendUp,
		DegradedSources: []string{"metrics_history.jsonl"},
		TraceID:         "trace-1",
		LoadedAt:        at,
	}

	raw, err := encodeSnapshot(snap)
	require.NoError(t, err)

	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, "KSI-CNA-01", got.Records[0].ID)
	assert.Equal(t, 2, got.Records[0].SuccessfulCommands)
	assert.Equal(t, 100.0, got.Metrics.Score)
	assert.True(t, at.Equal(got.History[0].Timestamp))
	assert.JSONEq(t, `{"services":["s3"]}`, string(got.Boundary))
	assert.Equal(t, []string{"metrics_history.jsonl"}, got.DegradedSources)
	assert.True(t, at.Equal(got.LoadedAt))
}

func TestDecodeSnapshotErrors(t *testing.T) {
	_, err := decodeSnapshot([]byte("{not json"))
	assert.Error(t, err)

	_, err = encodeSnapshot(nil)
	assert.Error(t, err)

	got, err := decodeSnapshot([]byte(`{"records":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, got.DegradedSources)
}

// lockRedis: минимальный in-memory Redis для SetNX/Set и скрипта снятия блокировки.
type lockRedis struct {
	redis.Cmdable
	data map[string]string
	// onSet вызывается внутри Set, чтобы подменить владельца блокировки посреди записи
	onSet func(data map[string]string)
}

func (r *lockRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if _, ok := r.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	r.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (r *lockRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	r.data[key] = fmt.Sprint(value)
	if r.onSet != nil {
		r.onSet(r.data)
	}
	return redis.NewStatusResult("OK", nil)
}

func (r *lockRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if r.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(r.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestStoreReleasesOwnLock(t *testing.T) {
	rdb := &lockRedis{data: map[string]string{}}
	s := NewSnapshotStore(rdb, time.Minute, "tc-1", zap.NewNop())

	require.NoError(t, s.Store(context.Background(), &domain.Snapshot{TraceID: "t1"}))

	assert.NotContains(t, rdb.data, infra.RedisKeyLockSnapshot)
	assert.Contains(t, rdb.data, infra.RedisKeySnapshotLatest)
}

func TestStoreKeepsForeignLock(t *testing.T) {
	rdb := &lockRedis{data: map[string]string{}}
	// Пока шла запись, TTL истек и блокировку взял другой инстанс
	rdb.onSet = func(data map[string]string) { data[infra.RedisKeyLockSnapshot] = "tc-2" }
	s := NewSnapshotStore(rdb, time.Minute, "tc-1", zap.NewNop())

	require.NoError(t, s.Store(context.Background(), &domain.Snapshot{TraceID: "t1"}))

	assert.Equal(t, "tc-2", rdb.data[infra.RedisKeyLockSnapshot])
}

func TestStoreSkipsWhenLockBusy(t *testing.T) {
	rdb := &lockRedis{data: map[string]string{infra.RedisKeyLockSnapshot: "tc-2"}}
	s := NewSnapshotStore(rdb, time.Minute, "tc-1", zap.NewNop())

	require.NoError(t, s.Store(context.Background(), &domain.Snapshot{TraceID: "t1"}))

	assert.NotContains(t, rdb.data, infra.RedisKeySnapshotLatest)
	assert.Equal(t, "tc-2", rdb.data[infra.RedisKeyLockSnapshot])
}
