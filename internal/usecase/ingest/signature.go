package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign returns the X-Hub-Signature-256 value GitHub would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of the raw request
// bytes. It never errors: an absent, malformed or mismatched header is false.
// body must be the bytes exactly as received; re-encoded JSON will not match.
func VerifySignature(body []byte, header string, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	// hmac.Equal is constant time and returns false on length mismatch.
	return hmac.Equal([]byte(header), []byte(Sign(body, secret)))
}
