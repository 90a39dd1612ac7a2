package identity

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(repo Repository) *JWTAuthenticator {
	return NewJWTAuthenticator(JWTConfig{
		SecretKey:            "test-secret-key-32-bytes-long!!",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: time.Hour,
	}, repo)
}

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)
	user := &domain.User{ID: "user-42"}

	tokens, err := auth.GenerateTokens(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 900, tokens.ExpiresIn)
	assert.Len(t, repo.tokens, 1)
	assert.NotContains(t, repo.tokens, tokens.RefreshToken, "refresh tokens are stored hashed")

	userID, err := auth.ValidateAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestJWTAuthenticator_RejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuthenticator(newMockRepository())
	other := NewJWTAuthenticator(JWTConfig{SecretKey: "another-secret-key-entirely!!", AccessTokenDuration: time.Minute}, newMockRepository())

	foreign, err := other.GenerateTokens(ctx, &domain.User{ID: "u"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u", Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": foreign.AccessToken,
		"alg none":     unsigned,
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ValidateAccessToken(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTAuthenticator_Expired(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuthenticator(newMockRepository())
	issued := time.Now().Add(-time.Hour)
	auth.now = func() time.Time { return issued }

	tokens, err := auth.GenerateTokens(ctx, &domain.User{ID: "u"})
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateAccessToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTAuthenticator_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	user := &domain.User{ID: "user-1", Email: "op@example.com"}
	repo.users[user.Email] = user
	auth := newTestAuthenticator(repo)

	first, err := auth.GenerateTokens(ctx, user)
	require.NoError(t, err)

	second, err := auth.RefreshTokens(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = auth.RefreshTokens(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "used refresh token must be revoked")
}

func TestJWTAuthenticator_RefreshExpired(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	user := &domain.User{ID: "user-1", Email: "op@example.com"}
	repo.users[user.Email] = user
	auth := newTestAuthenticator(repo)

	tokens, err := auth.GenerateTokens(ctx, user)
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = auth.RefreshTokens(ctx, tokens.RefreshToken)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, repo.tokens)
}

func TestJWTAuthenticator_Revoke(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	auth := newTestAuthenticator(repo)

	tokens, err := auth.GenerateTokens(ctx, &domain.User{ID: "u"})
	require.NoError(t, err)

	require.NoError(t, auth.RevokeRefreshToken(ctx, tokens.RefreshToken))
	assert.Empty(t, repo.tokens)
}
