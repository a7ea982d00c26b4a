package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey(APIKeyConfig{})
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	if !strings.HasPrefix(key.Secret, DefaultAPIKeyPrefix) {
		t.Errorf("Secret = %q, want prefix %q", key.Secret, DefaultAPIKeyPrefix)
	}
	if len(key.Secret) != len(DefaultAPIKeyPrefix)+DefaultAPIKeyLength {
		t.Errorf("len(Secret) = %d", len(key.Secret))
	}
	if key.Fingerprint != Fingerprint(key.Secret) {
		t.Errorf("Fingerprint = %q", key.Fingerprint)
	}
	if err := CheckAPIKeyHash(key.Hash); err != nil {
		t.Errorf("CheckAPIKeyHash(own hash) error = %v", err)
	}
	if err := VerifyAPIKey(key.Secret, key.Hash, APIKeyConfig{}); err != nil {
		t.Errorf("VerifyAPIKey(own hash) error = %v", err)
	}
}

func TestVerifyAPIKey_Rejects(t *testing.T) {
	cfg := APIKeyConfig{RandomLength: 8, Cost: bcrypt.MinCost}
	key, err := GenerateAPIKey(cfg)
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateAPIKey(cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, key, hash string
	}{
		{"other key", other.Secret, key.Hash},
		{"wrong shape", "nope", key.Hash},
		{"no hash", key.Secret, ""},
	}
	for _, tt := range tests {
		if err := VerifyAPIKey(tt.key, tt.hash, cfg); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("%s: error = %v, want ErrInvalidAPIKey", tt.name, err)
		}
	}
}

func TestCheckAPIKeyHash(t *testing.T) {
	if err := CheckAPIKeyHash(""); err != nil {
		t.Errorf("CheckAPIKeyHash(\"\") = %v", err)
	}
	if err := CheckAPIKeyHash("bp_live_pasted_the_key_by_mistake"); err == nil {
		t.Error("CheckAPIKeyHash should reject a non-bcrypt value")
	}
}

func TestAPIKeyConfig_WellFormed(t *testing.T) {
	cfg := APIKeyConfig{Prefix: "t_", RandomLength: 4}
	tests := []struct {
		key  string
		want bool
	}{
		{"t_abcd", true},
		{"t_abc", false},
		{"x_abcd", false},
	}
	for _, tt := range tests {
		if got := cfg.WellFormed(tt.key); got != tt.want {
			t.Errorf("WellFormed(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestAuthenticator(t *testing.T) {
	key, err := GenerateAPIKey(APIKeyConfig{})
	if err != nil {
		t.Fatal(err)
	}
	a := &Authenticator{JWT: JWTConfig{Secret: testSecret}, APIKeyHash: key.Hash}
	token, err := GenerateAccessToken(a.JWT, "dashboard", ScopeRunsRead)
	if err != nil {
		t.Fatal(err)
	}

	p, err := a.Authenticate("Bearer "+token, "")
	if err != nil {
		t.Fatalf("Authenticate(token) error = %v", err)
	}
	if p.Method != "jwt" || p.Subject != "dashboard" || !p.Can(ScopeRunsRead) || p.Can(ScopeRunsWrite) {
		t.Errorf("jwt principal = %+v", p)
	}

	p, err = a.Authenticate("", key.Secret)
	if err != nil {
		t.Fatalf("Authenticate(key) error = %v", err)
	}
	if p.Method != "api_key" || p.Subject != KeySubject(key.Secret) || !p.Can(ScopeRunsWrite) {
		t.Errorf("api key principal = %+v", p)
	}

	if _, err := a.Authenticate("Bearer garbage", key.Secret); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bad bearer should not fall back to the key, error = %v", err)
	}
	if _, err := a.Authenticate("Basic abc", ""); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Authenticate(basic) error = %v, want ErrNoCredentials", err)
	}
}

func TestAuthenticator_Disabled(t *testing.T) {
	a := &Authenticator{}
	p, err := a.Authenticate("", "")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p.Method != "anonymous" || !p.Can(ScopeRunsWrite) {
		t.Errorf("principal = %+v", p)
	}
}
