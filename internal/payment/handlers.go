package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/zariya-jewels/backend-store/internal/common"
)

// Handler exposes HTTP endpoints for payment initiation, status polling and
// signature verification.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type initiateReq struct {
	Provider        string `json:"provider"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	Reference       string `json:"reference"`
	Description     string `json:"description"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail" validate:"omitempty,email"`
	CustomerAddress string `json:"customerAddress"`
	RedirectURL     string `json:"redirectUrl" validate:"omitempty,url"`
}

type initiateResp struct {
	Provider      string `json:"provider"`
	TransactionID string `json:"transactionId"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	ClientSecret  string `json:"clientSecret,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	Reused        bool   `json:"reused,omitempty"`
}

// Initiate opens a payment with the requested provider.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payment request", validationDetails(err))
			return
		}
	}

	res, err := h.Svc.Initiate(r.Context(), InitiateInput{
		Provider:    req.Provider,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Reference:   strings.TrimSpace(req.Reference),
		Description: req.Description,
		Customer: Customer{
			Name:    strings.TrimSpace(req.CustomerName),
			Email:   strings.TrimSpace(req.CustomerEmail),
			Address: strings.TrimSpace(req.CustomerAddress),
		},
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		writeInitiateError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, initiateResp{
		Provider:      res.Provider,
		TransactionID: res.TransactionID,
		RedirectURL:   res.RedirectURL,
		ClientSecret:  res.ClientSecret,
		OrderID:       res.OrderID,
		Reused:        res.Reused,
	})
}

type statusResp struct {
	TransactionID string `json:"transactionId"`
	Provider      string `json:"provider"`
	Status        string `json:"status"`
	RawState      string `json:"rawState,omitempty"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PolledAt      string `json:"polledAt"`
}

// Status reports the reconciled payment status for a transaction.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	transactionID := strings.TrimSpace(chi.URLParam(r, "transactionId"))
	if transactionID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "transactionId is required", nil)
		return
	}
	out, err := h.Svc.Status(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			common.JSONError(w, http.StatusNotFound, "INTENT_NOT_FOUND", "no payment for transaction", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "STATUS_ERROR", "status lookup failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, statusResp{
		TransactionID: out.TransactionID,
		Provider:      out.Provider,
		Status:        string(out.Status),
		RawState:      out.RawState,
		Amount:        out.Amount,
		Currency:      out.Currency,
		PolledAt:      time.Now().UTC().Format(time.RFC3339),
	})
}

type verifyReq struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Verify checks a client-submitted Razorpay signature against the server-side
// recomputation.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req verifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "orderId, paymentId and signature are required", validationDetails(err))
			return
		}
	}

	out, err := h.Svc.Verify(r.Context(), VerifyInput{
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
	})
	if err != nil {
		var verr *VerificationError
		switch {
		case errors.As(err, &verr):
			common.JSONError(w, http.StatusBadRequest, "SIGNATURE_MISMATCH", "payment signature does not match", nil)
		case errors.Is(err, ErrVerifyUnavailable):
			common.JSONError(w, http.StatusServiceUnavailable, "VERIFY_UNAVAILABLE", "signature verification not configured", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "VERIFY_ERROR", "verification failed", nil)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"verified":      true,
		"status":        string(out.Status),
		"transactionId": out.TransactionID,
	})
}

// Routes mounts the payment endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/initiate", h.Initiate)
	r.Get("/{transactionId}/status", h.Status)
	r.Post("/verify", h.Verify)
}

func writeInitiateError(w http.ResponseWriter, err error) {
	var (
		cerr *ConfigurationError
		aerr *AuthError
		ierr *InitiationError
	)
	switch {
	case errors.Is(err, ErrUnknownProvider):
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", "requested payment provider is not available", nil)
	case errors.Is(err, ErrInvalidAmount):
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be positive", nil)
	case errors.As(err, &cerr):
		common.JSONError(w, http.StatusServiceUnavailable, "PROVIDER_MISCONFIGURED", "payment provider is not configured", nil)
	case errors.As(err, &aerr):
		common.JSONError(w, http.StatusBadGateway, "PROVIDER_AUTH_FAILED", "could not authenticate with payment provider", nil)
	case errors.As(err, &ierr):
		common.JSONError(w, http.StatusBadGateway, "INITIATION_FAILED", "payment provider rejected the request", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTENT_FAILED", "could not open payment", nil)
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return map[string]any{"fields": fields}
}
