package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/domain"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func hsToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := domain.CustomClaims{
		UserID: "u-1",
		Email:  "auditor@example.com",
		Scopes: map[string]bool{"trust.read": true},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return s
}

func TestDecodeExpiryBoundary(t *testing.T) {
	d := NewDecoder(nil, fixedNow)

	_, err := d.Decode(hsToken(t, testNow.Add(-time.Second)))
	assert.ErrorIs(t, err, ErrNoSession)

	s, err := d.Decode(hsToken(t, testNow.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)
	assert.Equal(t, "auditor@example.com", s.Email)
	assert.True(t, s.Scopes["trust.read"])
	assert.Equal(t, testNow.Add(time.Second).Unix(), s.ExpiresAt.Unix())
}

func TestDecodeRejectsMalformed(t *testing.T) {
	d := NewDecoder(nil, fixedNow)

	for _, tok := range []string{
		"",
		"Bearer ",
		"abc",
		"a.b",
		"a.b.c.d",
		"!!!.@@@.###",
		"eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.sig",
	} {
		_, err := d.Decode(tok)
		assert.ErrorIs(t, err, ErrNoSession, tok)
	}
}

func TestDecodeRequiresExp(t *testing.T) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.CustomClaims{UserID: "u-1"}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewDecoder(nil, fixedNow).Decode(s)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDecodeAcceptsBearerPrefixAndSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "sub-7", ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour))}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	session, err := NewDecoder(nil, fixedNow).Decode("Bearer " + s)
	require.NoError(t, err)
	assert.Equal(t, "sub-7", session.UserID)
}

func TestDecodeVerifiesSignatureWhenKeyConfigured(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := domain.CustomClaims{
		UserID:           "u-2",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Minute))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	s, err := NewDecoder(&key.PublicKey, fixedNow).Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-2", s.UserID)

	_, err = NewDecoder(&other.PublicKey, fixedNow).Decode(signed)
	assert.ErrorIs(t, err, ErrNoSession)

	// HS256 не принимается, когда ожидается RS256
	_, err = NewDecoder(&key.PublicKey, fixedNow).Decode(hsToken(t, testNow.Add(time.Minute)))
	assert.ErrorIs(t, err, ErrNoSession)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodRS256, domain.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(-time.Second))},
	}).SignedString(key)
	require.NoError(t, err)
	_, err = NewDecoder(&key.PublicKey, fixedNow).Decode(expired)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestParseRSAPublicKeyEmpty(t *testing.T) {
	_, err := ParseRSAPublicKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPublicKey([]byte("not a pem"))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	d := NewDecoder(nil, fixedNow)
	var seen *domain.Session
	protected := NewMiddleware(d, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + hsToken(t, testNow.Add(-time.Second)), want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + hsToken(t, testNow.Add(time.Second)), want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), "unauthorized")
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, "u-1", seen.UserID)
			}
		})
	}
}

func TestOptionalMiddleware(t *testing.T) {
	d := NewDecoder(nil, fixedNow)
	var ok bool
	h := NewOptionalMiddleware(d)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer "+hsToken(t, testNow.Add(time.Minute)))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
}
