// Package linebot implements the messaging-platform edge: webhook event
// types, signature verification, the reply/push client and the push
// allow-list policy.
package linebot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ValidSignature reports whether signature is the base64 HMAC-SHA256 of
// body under the channel secret. The raw body bytes must be used; any
// re-serialization breaks the digest.
func ValidSignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
