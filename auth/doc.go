// Package auth authenticates callers of the blueprint HTTP surface.
//
// Two credentials are accepted:
//   - HS256 bearer tokens carrying scopes (runs:write, runs:read)
//   - API keys ("bp_live_..."), verified against a bcrypt hash
//
// Mint a token or a key from the CLI and configure the server with the
// matching jwt_secret or api_key_hash:
//
//	token, err := auth.GenerateAccessToken(auth.JWTConfig{Secret: secret}, "ci", auth.ScopeRunsWrite)
//
//	key, err := auth.GenerateAPIKey(auth.APIKeyConfig{})
//	// key.Secret is shown once; key.Hash goes into api_key_hash
//
// The server checks each request with an Authenticator:
//
//	a := &auth.Authenticator{JWT: auth.JWTConfig{Secret: secret}, APIKeyHash: hash}
//	principal, err := a.Authenticate(r.Header.Get("Authorization"), r.Header.Get("X-API-Key"))
package auth
