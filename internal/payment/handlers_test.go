package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/zariya-jewels/backend-store/internal/payment"
	"github.com/zariya-jewels/backend-store/internal/repo"
)

func newTestRouter(store *fakeStore, providers map[string]payment.Provider, verifier payment.SignatureVerifier) chi.Router {
	svc := newService(store, providers)
	svc.Verifier = verifier
	handler := &payment.Handler{Svc: svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Route("/api/v1/payments", handler.Routes)
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Error.Code
}

func TestHandlerInitiate(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{
		name: "phonepe",
		initiateFn: func(req payment.InitiateRequest) (payment.Initiation, error) {
			return payment.Initiation{
				Provider:      "phonepe",
				TransactionID: req.TransactionID,
				RedirectURL:   "https://pay.example/r",
			}, nil
		},
	}
	router := newTestRouter(store, map[string]payment.Provider{"phonepe": provider}, nil)

	body := `{"amount":50000,"reference":"cart-1","customerEmail":"a@b.example"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Provider      string `json:"provider"`
		TransactionID string `json:"transactionId"`
		RedirectURL   string `json:"redirectUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "phonepe", resp.Provider)
	require.NotEmpty(t, resp.TransactionID)
	require.Equal(t, "https://pay.example/r", resp.RedirectURL)
}

func TestHandlerInitiateValidation(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, nil)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"zero amount", `{"amount":0}`, "VALIDATION_FAILED"},
		{"negative amount", `{"amount":-5}`, "VALIDATION_FAILED"},
		{"bad email", `{"amount":100,"customerEmail":"nope"}`, "VALIDATION_FAILED"},
		{"malformed json", `{"amount":`, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tc.code, errorCode(t, rec.Body.Bytes()))
		})
	}
}

func TestHandlerInitiateUnknownProvider(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate",
		strings.NewReader(`{"provider":"cashfree","amount":100}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "UNKNOWN_PROVIDER", errorCode(t, rec.Body.Bytes()))
}

func TestHandlerInitiateProviderRejection(t *testing.T) {
	provider := &fakeProvider{
		name: "phonepe",
		initiateFn: func(payment.InitiateRequest) (payment.Initiation, error) {
			return payment.Initiation{}, &payment.InitiationError{
				Provider:   "phonepe",
				StatusCode: 400,
				Body:       []byte(`{"internal":"secret detail"}`),
			}
		},
	}
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{"phonepe": provider}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate",
		strings.NewReader(`{"amount":100}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "INITIATION_FAILED", errorCode(t, rec.Body.Bytes()))
	// Raw provider bodies stay in the logs, never in the response.
	require.NotContains(t, rec.Body.String(), "secret detail")
}

func TestHandlerStatus(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{
		name: "phonepe",
		statusFn: func(string) (payment.StatusResult, error) {
			return payment.StatusResult{Status: payment.StatusCompleted, RawState: "COMPLETED"}, nil
		},
	}
	store.intents["TXN-1"] = repo.Intent{
		ID: uuid.New(), Provider: "phonepe", MerchantTransactionID: "TXN-1",
		Amount: 50000, Currency: "INR", Status: "PENDING",
	}
	router := newTestRouter(store, map[string]payment.Provider{"phonepe": provider}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/TXN-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "COMPLETED", resp.Status)
	require.EqualValues(t, 50000, resp.Amount)
	require.Equal(t, "INR", resp.Currency)
}

func TestHandlerStatusNotFound(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/TXN-missing/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "INTENT_NOT_FOUND", errorCode(t, rec.Body.Bytes()))
}

func TestHandlerVerify(t *testing.T) {
	store := newFakeStore()
	store.intents["TXN-4"] = repo.Intent{
		ID: uuid.New(), Provider: "razorpay", MerchantTransactionID: "TXN-4",
		ProviderRef: "order_abc", Status: "PENDING",
	}
	router := newTestRouter(store, map[string]payment.Provider{}, staticVerifier(true))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify",
		strings.NewReader(`{"orderId":"order_abc","paymentId":"pay_1","signature":"sig"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Verified      bool   `json:"verified"`
		Status        string `json:"status"`
		TransactionID string `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Verified)
	require.Equal(t, "COMPLETED", resp.Status)
	require.Equal(t, "TXN-4", resp.TransactionID)
}

func TestHandlerVerifyMismatch(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, staticVerifier(false))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify",
		strings.NewReader(`{"orderId":"order_abc","paymentId":"pay_1","signature":"bad"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "SIGNATURE_MISMATCH", errorCode(t, rec.Body.Bytes()))
}

func TestHandlerVerifyMissingFields(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, staticVerifier(true))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify",
		strings.NewReader(`{"orderId":"order_abc"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(t, rec.Body.Bytes()))
}

func TestHandlerVerifyUnavailable(t *testing.T) {
	router := newTestRouter(newFakeStore(), map[string]payment.Provider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify",
		strings.NewReader(`{"orderId":"o","paymentId":"p","signature":"s"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "VERIFY_UNAVAILABLE", errorCode(t, rec.Body.Bytes()))
}
