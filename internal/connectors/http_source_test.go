package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/trust-center/internal/infra"
)

func newTestSource(t *testing.T, h http.HandlerFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	src, err := NewHTTPSource(srv.URL+"/data", srv.Client(), false)
	require.NoError(t, err)
	return src
}

func TestHTTPSourceFetchOK(t *testing.T) {
	var gotPath string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	})

	body, err := src.Fetch(context.Background(), "unified_ksi_validations.json")

	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(body))
	assert.Equal(t, "/data/unified_ksi_validations.json", gotPath)
}

func TestHTTPSourceCacheBust(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("t")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, srv.Client(), true)
	require.NoError(t, err)
	src.now = func() time.Time { return time.UnixMilli(1700000000123) }

	_, err = src.Fetch(context.Background(), "mas_boundary.json")
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", gotQuery)
}

func TestHTTPSourceFetchErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		unavailable bool
		retryable   bool
		status      int
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			unavailable: true,
			status:      http.StatusNotFound,
		},
		{
			name: "html error page with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Write([]byte("<html><body>Oops</body></html>"))
			},
			unavailable: true,
			status:      http.StatusOK,
		},
		{
			name: "html body sniffed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Write([]byte("\n<!DOCTYPE html><html></html>"))
			},
			unavailable: true,
			status:      http.StatusOK,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			unavailable: true,
			status:      http.StatusOK,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			retryable: true,
			status:    http.StatusInternalServerError,
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, tt.handler)

			_, err := src.Fetch(context.Background(), "ksi_history.jsonl")

			require.Error(t, err)
			assert.Equal(t, tt.unavailable, IsUnavailable(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var sErr *SourceError
			require.True(t, errors.As(err, &sErr))
			assert.Equal(t, tt.status, sErr.StatusCode)
			assert.Equal(t, "ksi_history.jsonl", sErr.Source)
		})
	}
}

func TestHTTPSourceThrottle(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := src.Fetch(context.Background(), "cli_command_register.json")

	var tErr *ThrottleError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, 3*time.Second, tErr.RetryAfter)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsUnavailable(err))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, defaultThrottleDelay, parseRetryAfter("", now))
	assert.Equal(t, defaultThrottleDelay, parseRetryAfter("soon", now))
	assert.Equal(t, 10*time.Second, parseRetryAfter("10", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mas_boundary.json"), []byte(`{"nodes":[]}`), 0o600))

	src := NewDirSource(dir)

	body, err := src.Fetch(context.Background(), "mas_boundary.json")
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(body))

	_, err = src.Fetch(context.Background(), "metrics_history.jsonl")
	assert.True(t, IsUnavailable(err))

	_, err = src.Fetch(context.Background(), "../etc/passwd")
	assert.True(t, IsUnavailable(err))
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(infra.SourceConfig{Dir: t.TempDir(), BaseURL: "https://ignored.example.com"})
	require.NoError(t, err)
	assert.IsType(t, &DirSource{}, src)

	src, err = FromConfig(infra.SourceConfig{BaseURL: "https://trust.example.com/data"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	_, err = FromConfig(infra.SourceConfig{})
	assert.Error(t, err)
}
