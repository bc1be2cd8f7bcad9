package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqiexplorer/aqiexplorer/internal/auth"
)

const testKey = "test-secret-key-for-testing-only"

func newTokenService(t *testing.T, key string) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService(auth.TokenConfig{SigningKey: key})
	require.NoError(t, err)
	return svc
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := newTokenService(t, testKey)

	token, expiresAt, err := svc.Issue("ops@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, auth.DefaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_InvalidToken(t *testing.T) {
	svc := newTokenService(t, testKey)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestTokenService_WrongSigningKey(t *testing.T) {
	token, _, err := newTokenService(t, "key-one").Issue("ops")
	require.NoError(t, err)

	_, err = newTokenService(t, "key-two").Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_WrongAudience(t *testing.T) {
	issuer, err := auth.NewTokenService(auth.TokenConfig{SigningKey: testKey, Audience: "other-api"})
	require.NoError(t, err)

	token, _, err := issuer.Issue("ops")
	require.NoError(t, err)

	_, err = newTokenService(t, testKey).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultIssuer,
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{auth.DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = newTokenService(t, testKey).Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultIssuer,
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{auth.DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTokenService(t, testKey).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_MissingTokenExpiry(t *testing.T) {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   auth.DefaultIssuer,
			Subject:  "ops",
			Audience: jwt.ClaimStrings{auth.DefaultAudience},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = newTokenService(t, testKey).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewTokenService_RequiresKey(t *testing.T) {
	_, err := auth.NewTokenService(auth.TokenConfig{})
	assert.ErrorIs(t, err, auth.ErrMissingSignKey)
}

func TestTokenService_IssueRequiresSubject(t *testing.T) {
	_, _, err := newTokenService(t, testKey).Issue("")
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}
