package auth

import (
	"slices"
	"strings"
)

// Authentication methods recorded on a Principal.
const (
	MethodJWT       = "jwt"
	MethodAPIKey    = "api_key"
	MethodAnonymous = "anonymous"
)

// Principal is an authenticated caller. Its Subject is stored with every
// run the caller starts.
type Principal struct {
	// Subject is the token subject, or KeySubject of the API key.
	Subject string
	Scopes  []string
	Method  string
}

// Can reports whether the principal holds scope.
func (p Principal) Can(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// Require returns a *ScopeError when the principal lacks scope.
func (p Principal) Require(scope string) error {
	if p.Can(scope) {
		return nil
	}
	return &ScopeError{Subject: p.Subject, Required: scope, Granted: p.Scopes}
}

// Authenticator accepts bearer tokens and API keys. With neither a JWT
// secret nor an API key hash configured every request is anonymous and
// holds all scopes.
type Authenticator struct {
	JWT        JWTConfig
	APIKeyHash string
	APIKeys    APIKeyConfig
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.JWT.Secret) > 0 || a.APIKeyHash != ""
}

// Authenticate checks an Authorization header value and an API key. A
// bearer token wins over the key.
func (a *Authenticator) Authenticate(authorization, apiKey string) (Principal, error) {
	if !a.Enabled() {
		return Principal{Subject: MethodAnonymous, Method: MethodAnonymous, Scopes: slices.Clone(Scopes)}, nil
	}

	if token, ok := bearer(authorization); ok && len(a.JWT.Secret) > 0 {
		claims, err := ValidateAccessToken(a.JWT, token)
		if err != nil {
			return Principal{}, err
		}
		return claims.Principal(), nil
	}

	if apiKey != "" && a.APIKeyHash != "" {
		if err := VerifyAPIKey(apiKey, a.APIKeyHash, a.APIKeys); err != nil {
			return Principal{}, err
		}
		return Principal{Subject: KeySubject(apiKey), Scopes: slices.Clone(Scopes), Method: MethodAPIKey}, nil
	}

	return Principal{}, ErrNoCredentials
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
