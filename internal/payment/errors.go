package payment

import "fmt"

// ConfigurationError reports a missing or invalid provider credential. It is
// fatal for the attempt and never retried.
type ConfigurationError struct {
	Provider string
	Field    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment: %s configuration missing %s", e.Provider, e.Field)
}

// AuthError reports a failed token acquisition against a provider auth
// endpoint. The attempt must not proceed to initiation; the caller may retry.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment: %s auth failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("payment: %s auth failed", e.Provider)
}

func (e *AuthError) Unwrap() error { return e.Err }

// InitiationError reports a provider rejecting an initiation request. The raw
// provider body is retained for logs only and never shown to the end user.
type InitiationError struct {
	Provider   string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *InitiationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment: %s initiation failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("payment: %s initiation rejected with status %d", e.Provider, e.StatusCode)
}

func (e *InitiationError) Unwrap() error { return e.Err }

// VerificationError reports a client-submitted signature that does not match
// the server-side recomputation. Always treated as a security event.
type VerificationError struct {
	OrderID   string
	PaymentID string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment: signature mismatch for order %s payment %s", e.OrderID, e.PaymentID)
}
