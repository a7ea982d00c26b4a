package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultIssuer is written to and required of blueprint tokens.
const DefaultIssuer = "blueprint"

// DefaultAccessTokenTTL applies when JWTConfig.AccessTokenTTL is zero.
const DefaultAccessTokenTTL = 12 * time.Hour

// Scopes gate the HTTP operations.
const (
	ScopeRunsWrite = "runs:write" // start runs
	ScopeRunsRead  = "runs:read"  // list runs and stream events
)

// Scopes lists every scope a token may carry.
var Scopes = []string{ScopeRunsRead, ScopeRunsWrite}

// CheckScopes rejects scopes blueprint does not know.
func CheckScopes(scopes []string) error {
	for _, s := range scopes {
		if !slices.Contains(Scopes, s) {
			return fmt.Errorf("%w: %q", ErrUnknownScope, s)
		}
	}
	return nil
}

// JWTConfig configures minting and validation of access tokens.
type JWTConfig struct {
	// Secret is the HS256 key, at least 32 bytes.
	Secret []byte

	// Issuer defaults to DefaultIssuer.
	Issuer string

	AccessTokenTTL time.Duration

	// Leeway tolerates clock skew between the minting host and the server.
	Leeway time.Duration
}

func (c JWTConfig) issuer() string {
	if c.Issuer == "" {
		return DefaultIssuer
	}
	return c.Issuer
}

func (c JWTConfig) ttl() time.Duration {
	if c.AccessTokenTTL == 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

// Claims are carried by a blueprint access token.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token grants scope.
func (c Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Principal is the caller the token identifies.
func (c Claims) Principal() Principal {
	return Principal{Subject: c.Subject, Scopes: c.Scopes, Method: MethodJWT}
}

// GenerateAccessToken mints an HS256 token for subject. Each token gets a
// fresh ID so individual tokens can be told apart in run history.
func GenerateAccessToken(cfg JWTConfig, subject string, scopes ...string) (string, error) {
	if len(cfg.Secret) < 32 {
		return "", ErrSecretTooShort
	}
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if err := CheckScopes(scopes); err != nil {
		return "", err
	}

	id, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.issuer(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ttl())),
			ID:        id,
		},
		Scopes: scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// ValidateAccessToken verifies signature, issuer and expiry. Tokens
// without an expiry or a subject are rejected.
func ValidateAccessToken(cfg JWTConfig, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.issuer()),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil, !parsed.Valid:
		return nil, ErrInvalidToken
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
