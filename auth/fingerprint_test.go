package auth

import (
	"strings"
	"testing"
)

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("bp_live_secret")
	if len(fp) != 12 {
		t.Errorf("len(Fingerprint()) = %d, want 12", len(fp))
	}
	if fp != Fingerprint("bp_live_secret") {
		t.Error("Fingerprint() is not stable")
	}
	if fp == Fingerprint("bp_live_other") {
		t.Error("different keys share a fingerprint")
	}
	if strings.Contains(fp, "secret") {
		t.Error("fingerprint leaks the key")
	}
	if got := KeySubject("bp_live_secret"); got != "api-key:"+fp {
		t.Errorf("KeySubject() = %q", got)
	}
}
