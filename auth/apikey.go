package auth

import (
	"errors"
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAPIKeyPrefix = "bp_live_"
	DefaultAPIKeyLength = 32
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// APIKeyConfig shapes generated keys. The zero value produces
// "bp_live_" followed by 32 base62 characters, hashed at bcrypt's default
// cost.
type APIKeyConfig struct {
	Prefix       string
	RandomLength int
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
}

func (c APIKeyConfig) prefix() string {
	if c.Prefix == "" {
		return DefaultAPIKeyPrefix
	}
	return c.Prefix
}

func (c APIKeyConfig) length() int {
	if c.RandomLength == 0 {
		return DefaultAPIKeyLength
	}
	return c.RandomLength
}

func (c APIKeyConfig) cost() int {
	if c.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return c.Cost
}

// WellFormed reports whether key has the configured prefix and length.
// Malformed keys are rejected without touching bcrypt.
func (c APIKeyConfig) WellFormed(key string) bool {
	p := c.prefix()
	return strings.HasPrefix(key, p) && len(key) == len(p)+c.length()
}

// APIKey is a freshly generated key. Secret is shown to the operator once;
// only Hash is configured on the server, as api_key_hash.
type APIKey struct {
	Secret      string
	Hash        string
	Fingerprint string
}

// GenerateAPIKey creates a key and its bcrypt hash.
func GenerateAPIKey(cfg APIKeyConfig) (*APIKey, error) {
	random, err := nanoid.Generate(base62, cfg.length())
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	secret := cfg.prefix() + random

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cfg.cost())
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}
	return &APIKey{Secret: secret, Hash: string(hash), Fingerprint: Fingerprint(secret)}, nil
}

// CheckAPIKeyHash validates a configured api_key_hash so a typo fails at
// startup rather than on every request.
func CheckAPIKeyHash(hash string) error {
	if hash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("api_key_hash is not a bcrypt hash: %w", err)
	}
	return nil
}

// VerifyAPIKey checks key against a bcrypt hash.
func VerifyAPIKey(key, hash string, cfg APIKeyConfig) error {
	if hash == "" || !cfg.WellFormed(key) {
		return ErrInvalidAPIKey
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidAPIKey
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIKey, err)
	}
	return nil
}
