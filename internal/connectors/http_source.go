package connectors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxArtifactSize: защита от бесконечного тела ответа.
const maxArtifactSize = 64 << 20

const defaultThrottleDelay = 2 * time.Second

// HTTPSource читает статические артефакты относительно базового URL.
type HTTPSource struct {
	client    *http.Client
	baseURL   *url.URL
	cacheBust bool
	now       func() time.Time
}

// NewHTTPSource создает источник. cacheBust добавляет ?t=<unix-ms>, чтобы CDN не отдавал старую версию.
func NewHTTPSource(baseURL string, client *http.Client, cacheBust bool) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{
		client:    client,
		baseURL:   u,
		cacheBust: cacheBust,
		now:       time.Now,
	}, nil
}

// Fetch загружает один артефакт и возвращает сырое тело.
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	target := s.baseURL.ResolveReference(&url.URL{Path: name})
	if s.cacheBust {
		q := target.Query()
		q.Set("t", strconv.FormatInt(s.now().UnixMilli(), 10))
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &SourceError{Source: name, Reason: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson, text/plain")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: name, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: "not found", Err: ErrSourceUnavailable}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), s.now()),
			Cause:      &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)},
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return nil, &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: "read body", Err: err}
	}

	// Хостинг может ответить 200 со страницей ошибки
	if isHTML(resp.Header.Get("Content-Type"), body) {
		return nil, &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: "html instead of data", Err: ErrSourceUnavailable}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &SourceError{Source: name, StatusCode: resp.StatusCode, Reason: "empty body", Err: ErrSourceUnavailable}
	}
	return body, nil
}

func isHTML(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/html" {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultThrottleDelay
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if ts, err := http.ParseTime(v); err == nil {
		if d := ts.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultThrottleDelay
}
