package payment

import "strings"

// Status is the unified payment status every provider state maps into.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// normalisePhonePeState maps PhonePe order states into the unified status.
// The mapping is total: anything unrecognised degrades to Unknown so a polling
// loop never has to handle an error for an unexpected state string.
func normalisePhonePeState(state string) Status {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "COMPLETED", "PAYMENT_SUCCESS", "SUCCESS":
		return StatusCompleted
	case "PENDING", "PAYMENT_PENDING", "PAYMENT_INITIATED":
		return StatusPending
	case "FAILED", "PAYMENT_ERROR", "PAYMENT_DECLINED", "TIMED_OUT":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// normaliseRazorpayState maps Razorpay order states into the unified status.
func normaliseRazorpayState(state string) Status {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "paid":
		return StatusCompleted
	case "created", "attempted":
		return StatusPending
	default:
		return StatusUnknown
	}
}

// normaliseStripeState maps Stripe payment intent states into the unified status.
func normaliseStripeState(state string) Status {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "succeeded":
		return StatusCompleted
	case "processing", "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return StatusPending
	case "canceled":
		return StatusFailed
	default:
		return StatusUnknown
	}
}
