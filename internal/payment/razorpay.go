package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// razorpayOrderAPI is the slice of the Razorpay SDK surface this provider
// uses, extracted so tests can substitute a fake.
type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay implements Provider on top of the official razorpay-go SDK.
// Initiation creates an order the storefront completes via Razorpay checkout;
// the key secret also drives signature verification after redirect.
type Razorpay struct {
	KeySecret string
	Orders    razorpayOrderAPI
}

// NewRazorpay constructs the provider from an API key pair.
func NewRazorpay(keyID, keySecret string) (*Razorpay, error) {
	if keyID == "" || keySecret == "" {
		return nil, &ConfigurationError{Provider: "razorpay", Field: "api key pair"}
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{KeySecret: keySecret, Orders: client.Order}, nil
}

// Name implements Provider.
func (r *Razorpay) Name() string { return "razorpay" }

// Initiate creates a Razorpay order. The caller amount is scaled into paise
// and the currency is fixed to INR per the provider contract.
func (r *Razorpay) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	_ = ctx // the SDK does not accept a context; deadlines are enforced by its HTTP client

	data := map[string]interface{}{
		"amount":   req.Amount * 100,
		"currency": "INR",
		"receipt":  req.TransactionID,
	}
	if notes := orderNotes(req); len(notes) > 0 {
		data["notes"] = notes
	}
	order, err := r.Orders.Create(data, nil)
	if err != nil {
		return Initiation{}, &InitiationError{Provider: r.Name(), Err: err}
	}
	orderID, _ := order["id"].(string)
	if orderID == "" {
		return Initiation{}, &InitiationError{
			Provider: r.Name(),
			Err:      fmt.Errorf("order create response missing id"),
		}
	}
	return Initiation{
		Provider:      r.Name(),
		TransactionID: req.TransactionID,
		OrderID:       orderID,
	}, nil
}

func orderNotes(req InitiateRequest) map[string]interface{} {
	notes := map[string]interface{}{}
	if req.Customer.Name != "" {
		notes["customer_name"] = req.Customer.Name
	}
	if req.Customer.Email != "" {
		notes["customer_email"] = req.Customer.Email
	}
	if req.Description != "" {
		notes["description"] = req.Description
	}
	return notes
}

// Status fetches the order and maps its state. transactionID here is the
// Razorpay order id recorded at initiation.
func (r *Razorpay) Status(ctx context.Context, transactionID string) (StatusResult, error) {
	_ = ctx

	order, err := r.Orders.Fetch(transactionID, nil, nil)
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	state, _ := order["status"].(string)
	return StatusResult{
		Status:        normaliseRazorpayState(state),
		TransactionID: transactionID,
		RawState:      state,
	}, nil
}

// Verify recomputes the checkout signature for the order/payment pair.
func (r *Razorpay) Verify(orderID, paymentID, clientSignature string) bool {
	return VerifyRazorpaySignature(orderID, paymentID, clientSignature, r.KeySecret)
}
