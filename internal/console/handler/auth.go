package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/console/service"
	"github.com/xela07ax/trust-center/internal/domain"
)

type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error)
	Session(token string) (*domain.Session, error)
}

type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

func NewAuthHandler(s AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, logger: logger}
}

// Login POST /auth/token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidCredentials):
		// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		h.logger.Warn("login failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "token issuer unavailable")
	}
}

// Session GET /auth/session
// Отсутствующий или негодный токен не ошибка: отвечаем authenticated=false.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Session(r.Header.Get("Authorization"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "session": s})
}
