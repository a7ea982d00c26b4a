package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLen = 12

// Fingerprint identifies a credential in run records and logs without
// revealing it: the first 12 hex digits of its SHA-256.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// KeySubject is the principal subject recorded for runs started with an
// API key.
func KeySubject(apiKey string) string {
	return "api-key:" + Fingerprint(apiKey)
}
