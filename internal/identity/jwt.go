package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "statuspage"

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// JWTAuthenticator issues HS256 access tokens and opaque refresh tokens.
// Refresh tokens are stored as SHA-256 hashes and rotated on every use.
type JWTAuthenticator struct {
	config JWTConfig
	repo   Repository
	now    func() time.Time
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, repo Repository) *JWTAuthenticator {
	return &JWTAuthenticator{
		config: config,
		repo:   repo,
		now:    time.Now,
	}
}

// GenerateTokens issues a new token pair for the user.
func (a *JWTAuthenticator) GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	err = a.repo.SaveRefreshToken(ctx, &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(a.config.RefreshTokenDuration),
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(a.config.AccessTokenDuration.Seconds()),
	}, nil
}

// ValidateAccessToken verifies the signature and expiry and returns the user ID.
func (a *JWTAuthenticator) ValidateAccessToken(_ context.Context, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// RefreshTokens exchanges a refresh token for a new pair. The old refresh
// token is revoked.
func (a *JWTAuthenticator) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := hashToken(refreshToken)
	stored, err := a.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.IsExpired(a.now()) {
		if err := a.repo.DeleteRefreshToken(ctx, hash); err != nil {
			return nil, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return nil, ErrInvalidToken
	}

	if err := a.repo.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := a.repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken deletes the refresh token.
func (a *JWTAuthenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.repo.DeleteRefreshToken(ctx, hashToken(refreshToken))
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
