package signature_test

import (
	"strings"
	"testing"

	"github.com/xraph/trigger/signature"
)

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"test"}`)
	secret := "trgsec_0123456789abcdef"
	ts := int64(1756000000)

	sig := signature.Sign(payload, secret, ts)
	if !strings.HasPrefix(sig, "v1=") {
		t.Fatalf("signature %q missing version prefix", sig)
	}

	if !signature.Verify(payload, secret, ts, sig) {
		t.Error("valid signature failed verification")
	}
	if signature.Verify(payload, "wrong-secret", ts, sig) {
		t.Error("wrong secret must not verify")
	}
	if signature.Verify(payload, secret, ts+1, sig) {
		t.Error("different timestamp must not verify")
	}
	if signature.Verify([]byte(`{"event":"tampered"}`), secret, ts, sig) {
		t.Error("tampered payload must not verify")
	}
}

func TestSignDeterministic(t *testing.T) {
	payload := []byte("body")
	a := signature.Sign(payload, "secret", 42)
	b := signature.Sign(payload, "secret", 42)
	if a != b {
		t.Errorf("signatures differ: %q vs %q", a, b)
	}
}

func TestGenerateSecret(t *testing.T) {
	a := signature.GenerateSecret()
	b := signature.GenerateSecret()

	if !strings.HasPrefix(a, "trgsec_") {
		t.Errorf("secret %q missing prefix", a)
	}
	if len(a) != len("trgsec_")+64 {
		t.Errorf("secret length = %d", len(a))
	}
	if a == b {
		t.Error("secrets must be unique")
	}
}
