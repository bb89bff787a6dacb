package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// signPayload produces the signature headers for an outbound webhook:
// an HMAC-SHA256 over "<timestamp>.<payload>" plus a unique delivery ID so
// receivers can verify authenticity and reject replays.
func signPayload(secret string, payload []byte) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	deliveryID := uuid.New().String()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)

	return map[string]string{
		"X-Webhook-Signature": "sha256=" + hex.EncodeToString(mac.Sum(nil)),
		"X-Webhook-Timestamp": timestamp,
		"X-Webhook-ID":        deliveryID,
	}
}

// VerifySignature checks a received signature header against the payload
// and timestamp, using constant-time comparison.
func VerifySignature(secret, signature, timestamp string, payload []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
