package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/trust-center/internal/domain"
)

// ErrNoSession: токен отсутствует, поврежден или истек. Это не ошибка сервера,
// а штатное состояние "анонимный пользователь".
var ErrNoSession = errors.New("no session")

// SessionDecoder: интерфейс, который использует middleware и сервис авторизации
type SessionDecoder interface {
	Decode(tokenStr string) (*domain.Session, error)
}

// Decoder превращает JWT в сессию.
//
// Без публичного ключа работает модель trust-the-issuer: подпись не проверяется,
// проверяются только структура (три base64url-сегмента) и срок действия (exp).
// С ключом дополнительно проверяется подпись RS256.
type Decoder struct {
	publicKey *rsa.PublicKey
	now       func() time.Time
	leeway    time.Duration
}

func NewDecoder(pubKey *rsa.PublicKey, now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{publicKey: pubKey, now: now}
}

// WithLeeway допускает расхождение часов с эмитентом.
func (d *Decoder) WithLeeway(l time.Duration) *Decoder {
	d.leeway = l
	return d
}

func (d *Decoder) Decode(tokenStr string) (*domain.Session, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenStr), "Bearer "))
	if tokenStr == "" || strings.Count(tokenStr, ".") != 2 {
		return nil, fmt.Errorf("%w: malformed token", ErrNoSession)
	}

	claims := &domain.CustomClaims{}
	if d.publicKey != nil {
		if err := d.verify(tokenStr, claims); err != nil {
			return nil, err
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: token has no exp", ErrNoSession)
	}
	exp := claims.ExpiresAt.Time
	if !d.now().Before(exp.Add(d.leeway)) {
		return nil, fmt.Errorf("%w: token expired at %s", ErrNoSession, exp.UTC().Format(time.RFC3339))
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return &domain.Session{
		UserID:    userID,
		Email:     claims.Email,
		Scopes:    claims.Scopes,
		ExpiresAt: exp,
	}, nil
}

// verify проверяет подпись RS256. Срок действия дальше проверяется общим кодом.
func (d *Decoder) verify(tokenStr string, claims *domain.CustomClaims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(d.now),
		jwt.WithLeeway(d.leeway),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.publicKey, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: invalid token: %w", ErrNoSession, err)
	}
	return nil
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
