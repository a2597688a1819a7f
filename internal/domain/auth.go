package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email,omitempty"`
	Scopes map[string]bool `json:"scopes"` // "admin": true или "trust.read": true
	jwt.RegisteredClaims
}

// Session: то, что Trust Center знает о пользователе после декодирования токена.
type Session struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email,omitempty"`
	Scopes    map[string]bool `json:"scopes,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}
