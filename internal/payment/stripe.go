package payment

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// stripeIntentAPI is the slice of the Stripe SDK surface this provider uses.
type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe implements Provider using payment intents. The client secret of the
// created intent is handed back for the storefront to finish the payment.
type Stripe struct {
	Currency string
	Intents  stripeIntentAPI
}

// NewStripe constructs the provider from the account secret key.
func NewStripe(secretKey, currency string) (*Stripe, error) {
	if secretKey == "" {
		return nil, &ConfigurationError{Provider: "stripe", Field: "secret key"}
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{Currency: currency, Intents: api.PaymentIntents}, nil
}

// Name implements Provider.
func (s *Stripe) Name() string { return "stripe" }

// Initiate creates a payment intent carrying the customer's name and address
// as shipping metadata, which Stripe requires for export compliance on
// physical goods.
func (s *Stripe) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = strings.ToLower(s.Currency)
	}
	if currency == "" {
		currency = "inr"
	}

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(req.Description),
	}
	if req.Customer.Name != "" {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name: stripe.String(req.Customer.Name),
			Address: &stripe.AddressParams{
				Line1: stripe.String(req.Customer.Address),
			},
		}
	}

	intent, err := s.Intents.New(params)
	if err != nil {
		return Initiation{}, &InitiationError{Provider: s.Name(), Err: err}
	}
	if intent.ClientSecret == "" {
		return Initiation{}, &InitiationError{
			Provider: s.Name(),
			Err:      fmt.Errorf("payment intent %s has no client secret", intent.ID),
		}
	}
	return Initiation{
		Provider:      s.Name(),
		TransactionID: req.TransactionID,
		OrderID:       intent.ID,
		ClientSecret:  intent.ClientSecret,
	}, nil
}

// Status fetches the payment intent recorded at initiation and maps its state.
func (s *Stripe) Status(ctx context.Context, transactionID string) (StatusResult, error) {
	intent, err := s.Intents.Get(transactionID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	state := string(intent.Status)
	return StatusResult{
		Status:        normaliseStripeState(state),
		TransactionID: transactionID,
		RawState:      state,
	}, nil
}
