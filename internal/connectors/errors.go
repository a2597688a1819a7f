package connectors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSourceUnavailable: артефакт отсутствует: 404, HTML вместо JSON, пустое тело.
// Для опциональных источников это штатная деградация, не ошибка загрузки.
var ErrSourceUnavailable = errors.New("source unavailable")

// SourceError описывает отказ одного источника.
type SourceError struct {
	Source     string
	StatusCode int
	Reason     string
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: http %d: %s", e.Source, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("source %s: %s", e.Source, e.Reason)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Temporary: отказ имеет смысл повторить (5xx, сетевые ошибки).
func (e *SourceError) Temporary() bool {
	if errors.Is(e.Err, ErrSourceUnavailable) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// IsRetryable решает, стоит ли повторять запрос к источнику.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var tErr *ThrottleError
	if errors.As(err, &tErr) {
		return true
	}
	var sErr *SourceError
	if errors.As(err, &sErr) {
		return sErr.Temporary()
	}
	return false
}

// IsUnavailable: источник просто отсутствует (не считается отказом для Circuit Breaker).
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}
