package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignPhonePe computes the X-VERIFY checksum for a PhonePe request.
// The wire contract is exact: sha256 hex of base64(payload) + apiPath + saltKey,
// followed by "###" and the salt index. Any deviation in concatenation order or
// separator produces a checksum the provider rejects.
func SignPhonePe(payload []byte, apiPath, saltKey, saltIndex string) (string, error) {
	if strings.TrimSpace(saltKey) == "" {
		return "", &ConfigurationError{Provider: "phonepe", Field: "salt key"}
	}
	if strings.TrimSpace(saltIndex) == "" {
		return "", &ConfigurationError{Provider: "phonepe", Field: "salt index"}
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	sum := sha256.Sum256([]byte(encoded + apiPath + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex, nil
}

// SignPhonePePath computes the X-VERIFY checksum for a GET request, where
// only the API path and salt participate in the digest.
func SignPhonePePath(apiPath, saltKey, saltIndex string) (string, error) {
	return SignPhonePe(nil, apiPath, saltKey, saltIndex)
}

// RazorpaySignature computes the HMAC-SHA256 hex digest of
// "orderID|paymentID" keyed by the provider secret.
func RazorpaySignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyRazorpaySignature recomputes the expected signature server-side and
// compares it to the client-submitted one in constant time. Pure function, no
// I/O; a mismatch must be treated as a security event by the caller.
func VerifyRazorpaySignature(orderID, paymentID, clientSignature, secret string) bool {
	if strings.TrimSpace(clientSignature) == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	expected := RazorpaySignature(orderID, paymentID, secret)
	return hmac.Equal([]byte(expected), []byte(clientSignature))
}
