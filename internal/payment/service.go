package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zariya-jewels/backend-store/internal/obs"
	"github.com/zariya-jewels/backend-store/internal/repo"
)

var (
	// ErrUnknownProvider means the requested gateway is not configured.
	ErrUnknownProvider = errors.New("payment: unknown provider")
	// ErrInvalidAmount means the requested amount is zero or negative.
	ErrInvalidAmount = errors.New("payment: amount must be positive")
	// ErrIntentNotFound means no intent exists for the transaction id.
	ErrIntentNotFound = errors.New("payment: intent not found")
	// ErrVerifyUnavailable means no signature-capable provider is configured.
	ErrVerifyUnavailable = errors.New("payment: verification not available")
)

// IntentStore is the persistence surface the service needs.
type IntentStore interface {
	CreateIntent(ctx context.Context, in repo.Intent) (repo.Intent, error)
	GetIntentByTransactionID(ctx context.Context, transactionID string) (repo.Intent, error)
	GetIntentByProviderRef(ctx context.Context, providerRef string) (repo.Intent, error)
	GetPendingIntentByReference(ctx context.Context, reference, provider string, now time.Time) (repo.Intent, error)
	AttachProviderResult(ctx context.Context, transactionID, providerRef, redirectURL string, payload []byte) error
	UpdateIntentStatus(ctx context.Context, transactionID, status string, payload []byte) error
	InsertIntentEvent(ctx context.Context, intentID uuid.UUID, status string, payload []byte) error
}

// SignatureVerifier checks a client-submitted payment signature.
type SignatureVerifier interface {
	Verify(orderID, paymentID, clientSignature string) bool
}

// Service coordinates intent creation, status reconciliation and signature
// verification across the configured providers.
type Service struct {
	Providers       map[string]Provider
	Verifier        SignatureVerifier
	Store           IntentStore
	Logger          zerolog.Logger
	DefaultProvider string
	Currency        string
	IntentTTL       time.Duration
	CallbackBaseURL string
	Now             func() time.Time
}

// InitiateInput is a validated request to open a payment.
type InitiateInput struct {
	Provider    string
	Amount      int64
	Currency    string
	Reference   string
	Description string
	Customer    Customer
	RedirectURL string
}

// InitiateResult is what the storefront needs to continue checkout.
type InitiateResult struct {
	Provider      string
	TransactionID string
	RedirectURL   string
	ClientSecret  string
	OrderID       string
	Reused        bool
}

// Initiate validates the request, reuses an open intent for the same
// reference when one exists, and otherwise opens a fresh payment with the
// selected provider. Validation failures never reach the network.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Initiate")
	defer span.End()

	providerName := strings.ToLower(strings.TrimSpace(in.Provider))
	if providerName == "" {
		providerName = s.DefaultProvider
	}
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.String("payment.initiate.result", result),
		)
		if obs.PaymentInitiateTotal != nil {
			obs.PaymentInitiateTotal.WithLabelValues(providerName, result).Inc()
		}
	}()

	provider, ok := s.Providers[providerName]
	if !ok {
		result = "rejected"
		return InitiateResult{}, ErrUnknownProvider
	}
	if in.Amount <= 0 {
		result = "rejected"
		return InitiateResult{}, ErrInvalidAmount
	}
	currency := in.Currency
	if currency == "" {
		currency = s.Currency
	}

	if in.Reference != "" {
		existing, err := s.Store.GetPendingIntentByReference(ctx, in.Reference, providerName, s.now())
		if err == nil && reusable(existing) {
			result = "reused"
			return InitiateResult{
				Provider:      existing.Provider,
				TransactionID: existing.MerchantTransactionID,
				RedirectURL:   existing.RedirectURL,
				OrderID:       existing.ProviderRef,
				Reused:        true,
			}, nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return InitiateResult{}, err
		}
	}

	transactionID := "TXN-" + uuid.NewString()
	span.SetAttributes(attribute.String("payment.transaction_id", transactionID))

	ttl := s.IntentTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	_, err := s.Store.CreateIntent(ctx, repo.Intent{
		Provider:              providerName,
		MerchantTransactionID: transactionID,
		Reference:             in.Reference,
		Amount:                in.Amount,
		Currency:              currency,
		Status:                string(StatusCreated),
		CustomerName:          in.Customer.Name,
		CustomerEmail:         in.Customer.Email,
		CustomerAddress:       in.Customer.Address,
		ExpiresAt:             s.now().Add(ttl),
	})
	if err != nil {
		return InitiateResult{}, err
	}

	initiation, err := provider.Initiate(ctx, InitiateRequest{
		TransactionID: transactionID,
		Amount:        in.Amount,
		Currency:      currency,
		Description:   in.Description,
		Customer:      in.Customer,
		RedirectURL:   in.RedirectURL,
		CallbackURL:   s.callbackURL(transactionID),
	})
	if err != nil {
		span.RecordError(err)
		s.Logger.Error().Err(err).
			Str("provider", providerName).
			Str("transaction_id", transactionID).
			Msg("payment initiation failed")
		if uerr := s.Store.UpdateIntentStatus(ctx, transactionID, string(StatusFailed), initiationFailurePayload(err)); uerr != nil {
			s.Logger.Error().Err(uerr).Str("transaction_id", transactionID).Msg("record initiation failure")
		}
		return InitiateResult{}, err
	}

	payload, _ := json.Marshal(map[string]any{
		"provider_ref": firstNonEmpty(initiation.OrderID, initiation.TransactionID),
		"redirect_url": initiation.RedirectURL,
	})
	if err := s.Store.AttachProviderResult(ctx, transactionID, initiation.OrderID, initiation.RedirectURL, payload); err != nil {
		s.Logger.Error().Err(err).Str("transaction_id", transactionID).Msg("attach provider result")
	}

	result = "ok"
	return InitiateResult{
		Provider:      providerName,
		TransactionID: transactionID,
		RedirectURL:   initiation.RedirectURL,
		ClientSecret:  initiation.ClientSecret,
		OrderID:       initiation.OrderID,
	}, nil
}

// StatusOutput is the reconciled view returned to the storefront.
type StatusOutput struct {
	TransactionID string
	Provider      string
	Status        Status
	RawState      string
	Amount        int64
	Currency      string
}

// Status loads the intent, asks its provider for the current state and
// reconciles it into the unified status. Provider failures degrade to
// Unknown instead of surfacing as errors so pollers never break.
func (s *Service) Status(ctx context.Context, transactionID string) (StatusOutput, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Status")
	defer span.End()
	span.SetAttributes(attribute.String("payment.transaction_id", transactionID))

	intent, err := s.Store.GetIntentByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return StatusOutput{}, ErrIntentNotFound
		}
		return StatusOutput{}, err
	}
	out := StatusOutput{
		TransactionID: transactionID,
		Provider:      intent.Provider,
		Status:        Status(intent.Status),
		Amount:        intent.Amount,
		Currency:      intent.Currency,
	}
	// Terminal states never change; skip the provider round trip.
	if out.Status.Terminal() {
		s.recordPoll(intent.Provider, out.Status)
		return out, nil
	}

	provider, ok := s.Providers[intent.Provider]
	if !ok {
		out.Status = StatusUnknown
		s.recordPoll(intent.Provider, out.Status)
		return out, nil
	}

	identifier := transactionID
	if intent.ProviderRef != "" {
		identifier = intent.ProviderRef
	}
	res, perr := provider.Status(ctx, identifier)
	if perr != nil {
		span.RecordError(perr)
		s.Logger.Warn().Err(perr).
			Str("provider", intent.Provider).
			Str("transaction_id", transactionID).
			Msg("status poll degraded to unknown")
		out.Status = StatusUnknown
		s.recordPoll(intent.Provider, out.Status)
		return out, nil
	}

	out.Status = res.Status
	out.RawState = res.RawState
	s.recordPoll(intent.Provider, out.Status)

	payload, _ := json.Marshal(map[string]any{"raw_state": res.RawState})
	if res.Status != Status(intent.Status) && res.Status != StatusUnknown {
		if err := s.Store.UpdateIntentStatus(ctx, transactionID, string(res.Status), payload); err != nil {
			s.Logger.Error().Err(err).Str("transaction_id", transactionID).Msg("persist status transition")
		}
	} else {
		if err := s.Store.InsertIntentEvent(ctx, intent.ID, string(res.Status), payload); err != nil {
			s.Logger.Error().Err(err).Str("transaction_id", transactionID).Msg("record status poll")
		}
	}
	return out, nil
}

// VerifyInput is a client-submitted payment confirmation.
type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyOutput reports a successful verification.
type VerifyOutput struct {
	TransactionID string
	Status        Status
}

// Verify recomputes the payment signature server-side and, on match, marks
// the matching intent as completed. A mismatch is returned as a
// VerificationError and logged as a security event.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (VerifyOutput, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Verify")
	defer span.End()

	if s.Verifier == nil {
		return VerifyOutput{}, ErrVerifyUnavailable
	}
	if !s.Verifier.Verify(in.OrderID, in.PaymentID, in.Signature) {
		if obs.PaymentVerifyTotal != nil {
			obs.PaymentVerifyTotal.WithLabelValues("mismatch").Inc()
		}
		s.Logger.Warn().
			Str("order_id", in.OrderID).
			Str("payment_id", in.PaymentID).
			Msg("payment signature mismatch")
		return VerifyOutput{}, &VerificationError{OrderID: in.OrderID, PaymentID: in.PaymentID}
	}
	if obs.PaymentVerifyTotal != nil {
		obs.PaymentVerifyTotal.WithLabelValues("ok").Inc()
	}

	out := VerifyOutput{Status: StatusCompleted}
	intent, err := s.Store.GetIntentByProviderRef(ctx, in.OrderID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return VerifyOutput{}, err
		}
		// Verified but unknown locally: signature stands on its own.
		return out, nil
	}
	out.TransactionID = intent.MerchantTransactionID

	payload, _ := json.Marshal(map[string]any{
		"payment_id": in.PaymentID,
		"verified":   true,
	})
	if err := s.Store.UpdateIntentStatus(ctx, intent.MerchantTransactionID, string(StatusCompleted), payload); err != nil {
		s.Logger.Error().Err(err).
			Str("transaction_id", intent.MerchantTransactionID).
			Msg("persist verified completion")
	}
	return out, nil
}

func (s *Service) recordPoll(provider string, status Status) {
	if obs.PaymentStatusPollTotal != nil {
		obs.PaymentStatusPollTotal.WithLabelValues(provider, string(status)).Inc()
	}
}

func (s *Service) callbackURL(transactionID string) string {
	if s.CallbackBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.CallbackBaseURL, "/") + "/api/v1/payments/" + transactionID + "/status"
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// reusable reports whether an open intent carries enough provider state to
// hand back to the storefront. Stripe intents are excluded: the client
// secret is never persisted.
func reusable(in repo.Intent) bool {
	if in.RedirectURL != "" {
		return true
	}
	return in.ProviderRef != "" && in.Provider != "stripe"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func initiationFailurePayload(err error) []byte {
	var ierr *InitiationError
	if errors.As(err, &ierr) {
		payload, _ := json.Marshal(map[string]any{
			"error":       ierr.Error(),
			"status_code": ierr.StatusCode,
		})
		return payload
	}
	payload, _ := json.Marshal(map[string]any{"error": err.Error()})
	return payload
}
