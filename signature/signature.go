// Package signature provides optional HMAC-SHA256 signing of delivery
// bodies for triggers that configure a signing secret.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sign generates the HMAC-SHA256 signature for the given payload.
// The content to sign is "{timestamp}.{payload}".
// Returns a versioned signature in the format "v1=<hex>".
func Sign(payload []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks whether sig matches the expected HMAC-SHA256 signature for
// the payload, secret, and timestamp. Receivers use this to authenticate
// deliveries.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// GenerateSecret creates a cryptographically random signing secret.
// Format: "trgsec_" + 32 bytes hex.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("signature: failed to generate random secret: " + err.Error())
	}
	return "trgsec_" + hex.EncodeToString(b)
}
