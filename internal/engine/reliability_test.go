package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/connectors"
)

func newReliable(t *testing.T, h http.HandlerFunc, cfg ReliabilityConfig) *ReliableSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	src, err := connectors.NewHTTPSource(srv.URL, srv.Client(), false)
	require.NoError(t, err)
	return NewReliableSource(src, cfg, NewMetrics(nil), zap.NewNop())
}

func TestReliableSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	rs := newReliable(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}, ReliabilityConfig{Attempts: 3})

	body, err := rs.Fetch(context.Background(), ArtifactValidations)

	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestReliableSourceDoesNotRetryMissingArtifact(t *testing.T) {
	var calls atomic.Int32
	rs := newReliable(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}, ReliabilityConfig{Attempts: 3})

	_, err := rs.Fetch(context.Background(), ArtifactRegister)

	require.Error(t, err)
	assert.True(t, connectors.IsUnavailable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestReliableSourceHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	rs := newReliable(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}, ReliabilityConfig{Attempts: 2})

	start := time.Now()
	_, err := rs.Fetch(context.Background(), ArtifactBoundary)

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestReliableSourceBreakerIgnoresMissingArtifacts(t *testing.T) {
	var calls atomic.Int32
	rs := newReliable(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}, ReliabilityConfig{Attempts: 1, BreakerFails: 2})

	for i := 0; i < 5; i++ {
		_, err := rs.Fetch(context.Background(), ArtifactMetrics)
		assert.True(t, connectors.IsUnavailable(err))
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestReliableSourceBreakerOpensOnFailures(t *testing.T) {
	var calls atomic.Int32
	rs := newReliable(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}, ReliabilityConfig{Attempts: 1, BreakerFails: 2, BreakerTimeout: time.Hour})

	for i := 0; i < 4; i++ {
		_, err := rs.Fetch(context.Background(), ArtifactHistory)
		assert.Error(t, err)
	}
	// После двух подряд отказов запросы до сервера не доходят
	assert.Equal(t, int32(2), calls.Load())
}
