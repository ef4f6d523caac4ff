package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marmos91/fileserv/pkg/identity"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidTokenType    = errors.New("invalid token type")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// JWTConfig holds configuration for JWT token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "fileserv"
	Issuer string

	// AccessTokenDuration is the lifetime of access tokens. Default: 15 minutes.
	AccessTokenDuration time.Duration

	// RefreshTokenDuration is the lifetime of refresh tokens. Default: 7 days.
	RefreshTokenDuration time.Duration
}

// JWTService handles JWT token generation and validation. It is also the
// identity provider for bearer credentials.
type JWTService struct {
	config JWTConfig
}

var _ identity.Provider = (*JWTService)(nil)

// TokenPair contains both access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewJWTService rejects secrets shorter than 32 characters and fills the
// issuer and lifetimes when unset.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "fileserv"
	}
	if config.AccessTokenDuration <= 0 {
		config.AccessTokenDuration = 15 * time.Minute
	}
	if config.RefreshTokenDuration <= 0 {
		config.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	return &JWTService{config: config}, nil
}

// GenerateTokenPair signs an access and a refresh token for id. Both share
// the issue time and carry distinct token IDs.
func (s *JWTService) GenerateTokenPair(id identity.Identity) (*TokenPair, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: empty identity", ErrTokenSigningFailed)
	}

	now := time.Now()
	pair := &TokenPair{
		TokenType: "Bearer",
		ExpiresIn: int64(s.config.AccessTokenDuration.Seconds()),
		ExpiresAt: now.Add(s.config.AccessTokenDuration),
	}
	for _, t := range []struct {
		kind TokenType
		ttl  time.Duration
		out  *string
	}{
		{TokenTypeAccess, s.config.AccessTokenDuration, &pair.AccessToken},
		{TokenTypeRefresh, s.config.RefreshTokenDuration, &pair.RefreshToken},
	} {
		signed, err := s.sign(id, t.kind, now, now.Add(t.ttl))
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s token: %w", t.kind, err)
		}
		*t.out = signed
	}
	return pair, nil
}

func (s *JWTService) sign(id identity.Identity, kind TokenType, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username:  id.Username,
		Admin:     id.IsAdmin,
		Groups:    id.Groups,
		TokenType: kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}

// ValidateToken checks signature, issuer and expiry and returns the claims
// of a token of either type.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil, !token.Valid, claims.Username == "":
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *JWTService) keyFunc(*jwt.Token) (any, error) {
	return []byte(s.config.Secret), nil
}

// ValidateAccessToken accepts only access tokens.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateTyped(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken accepts only refresh tokens.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateTyped(tokenString, TokenTypeRefresh)
}

func (s *JWTService) validateTyped(tokenString string, want TokenType) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != want {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

// AccessTokenDuration returns the configured access token lifetime.
func (s *JWTService) AccessTokenDuration() time.Duration {
	return s.config.AccessTokenDuration
}

// ============================================================================
// identity.Provider
// ============================================================================

// Name returns "jwt".
func (s *JWTService) Name() string {
	return "jwt"
}

// Authenticate maps a bearer access token to its identity.
func (s *JWTService) Authenticate(_ context.Context, creds identity.Credentials) (identity.Identity, error) {
	c, ok := creds.(*identity.BearerCredentials)
	if !ok {
		return identity.Identity{}, identity.ErrUnsupportedCredType
	}
	claims, err := s.ValidateAccessToken(c.Token)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", identity.ErrUnauthorized, err)
	}
	return claims.Identity(), nil
}

// SupportsCredentialType returns true for "bearer".
func (s *JWTService) SupportsCredentialType(credType string) bool {
	return credType == "bearer"
}
