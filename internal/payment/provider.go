package payment

import "context"

// Customer carries the buyer identity some providers require for
// export-compliance metadata on the charge.
type Customer struct {
	Name    string
	Email   string
	Address string
}

// InitiateRequest captures the information required to open a payment with a provider.
type InitiateRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	Description   string
	Customer      Customer
	RedirectURL   string
	CallbackURL   string
}

// Initiation is the minimal result of opening a payment with a provider.
// Exactly one of RedirectURL (hosted checkout), ClientSecret (Stripe) or
// OrderID (Razorpay frontend checkout) is the caller's next step.
type Initiation struct {
	Provider      string
	TransactionID string
	RedirectURL   string
	ClientSecret  string
	OrderID       string
}

// StatusResult is the reconciled state of one payment attempt.
type StatusResult struct {
	Status        Status
	TransactionID string
	RawState      string
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (Initiation, error)
	Status(ctx context.Context, transactionID string) (StatusResult, error)
}
