package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
)

type ctxKey struct{}

// WithSession кладет сессию в контекст.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFromContext достает сессию, положенную middleware.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*domain.Session)
	return s, ok && s != nil
}

// NewMiddleware пропускает только запросы с действующей сессией, остальным, 401.
func NewMiddleware(d SessionDecoder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			session, err := d.Decode(authHeader)
			if err != nil {
				logger.Debug("auth failure", zap.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// NewOptionalMiddleware добавляет сессию в контекст, если токен действителен, но не требует его.
func NewOptionalMiddleware(d SessionDecoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h := r.Header.Get("Authorization"); h != "" {
				if session, err := d.Decode(h); err == nil {
					r = r.WithContext(WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="trust-center"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}
