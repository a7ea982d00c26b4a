package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrSecretTooShort = errors.New("jwt secret must be at least 32 bytes")
	ErrInvalidAPIKey  = errors.New("invalid api key")

	// ErrNoCredentials is returned when authentication is enabled and the
	// request carried neither a bearer token nor an API key.
	ErrNoCredentials = errors.New("no credentials")

	ErrInsufficientScope = errors.New("insufficient scope")
	ErrUnknownScope      = errors.New("unknown scope")
)

// ScopeError reports which scope a principal was missing.
type ScopeError struct {
	Subject  string
	Required string
	Granted  []string
}

func (e *ScopeError) Error() string {
	granted := "none"
	if len(e.Granted) > 0 {
		granted = strings.Join(e.Granted, ", ")
	}
	return fmt.Sprintf("%s requires scope %s (granted: %s)", e.Subject, e.Required, granted)
}

// Is matches ErrInsufficientScope.
func (e *ScopeError) Is(target error) bool {
	return target == ErrInsufficientScope
}
