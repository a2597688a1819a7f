package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/infra/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIssuerUnavailable: эмитент не ответил или ответил не по контракту.
	ErrIssuerUnavailable = errors.New("token issuer unavailable")
)

// AuthService не выпускает токены сам: он пересылает логин удаленному эмитенту
// и проверяет полученный токен тем же декодером, что и middleware.
type AuthService struct {
	issuerURL string
	client    *http.Client
	decoder   auth.SessionDecoder
	now       func() time.Time
	logger    *zap.Logger
}

func NewAuthService(issuerURL string, client *http.Client, decoder auth.SessionDecoder, logger *zap.Logger) *AuthService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AuthService{
		issuerURL: issuerURL,
		client:    client,
		decoder:   decoder,
		now:       time.Now,
		logger:    logger.Named("auth_service"),
	}
}

// issuerResponse принимает обе распространенные формы ответа эмитента.
type issuerResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.issuerURL == "" {
		return nil, fmt.Errorf("%w: issuer url is not configured", ErrIssuerUnavailable)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.issuerURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuerUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuerUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: issuer returned %d", ErrIssuerUnavailable, resp.StatusCode)
	}

	var out issuerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode issuer response: %w", ErrIssuerUnavailable, err)
	}
	token := out.AccessToken
	if token == "" {
		token = out.Token
	}

	// Эмитенту доверяем, но мертвый токен клиенту не отдаем
	session, err := s.decoder.Decode(token)
	if err != nil {
		s.logger.Warn("issuer returned unusable token", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrIssuerUnavailable, err)
	}

	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(session.ExpiresAt.Sub(s.now()).Seconds()),
	}, nil
}

// Session декодирует токен. Отсутствующий, поврежденный или истекший токен дает auth.ErrNoSession.
func (s *AuthService) Session(token string) (*domain.Session, error) {
	return s.decoder.Decode(token)
}
