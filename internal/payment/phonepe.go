package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zariya-jewels/backend-store/internal/resilience"
)

const (
	phonePePayPath    = "/pg/v1/pay"
	phonePeStatusPath = "/pg/v1/status"
)

// PhonePe implements Provider against the PhonePe standard checkout API.
// Requests are authenticated with the X-VERIFY checksum; the status endpoint
// additionally carries the OAuth bearer when a token cache is configured.
type PhonePe struct {
	MerchantID string
	SaltKey    string
	SaltIndex  string
	BaseURL    string
	Tokens     *TokenCache
	HTTP       resilience.HTTPClient
}

// Name implements Provider.
func (p *PhonePe) Name() string { return "phonepe" }

type phonePePayPayload struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	MerchantUserID        string `json:"merchantUserId,omitempty"`
	Amount                int64  `json:"amount"`
	RedirectURL           string `json:"redirectUrl"`
	RedirectMode          string `json:"redirectMode"`
	CallbackURL           string `json:"callbackUrl,omitempty"`
	PaymentInstrument     struct {
		Type string `json:"type"`
	} `json:"paymentInstrument"`
}

type phonePePayResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// Initiate builds the signed pay request and extracts the hosted checkout URL
// from the nested response. The call is made exactly once; a rejected request
// surfaces as InitiationError with the raw body attached for diagnostics.
func (p *PhonePe) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	if strings.TrimSpace(p.MerchantID) == "" {
		return Initiation{}, &ConfigurationError{Provider: p.Name(), Field: "merchant id"}
	}

	payload := phonePePayPayload{
		MerchantID:            p.MerchantID,
		MerchantTransactionID: req.TransactionID,
		Amount:                req.Amount,
		RedirectURL:           req.RedirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           req.CallbackURL,
	}
	payload.PaymentInstrument.Type = "PAY_PAGE"

	raw, err := json.Marshal(payload)
	if err != nil {
		return Initiation{}, &InitiationError{Provider: p.Name(), Err: err}
	}
	checksum, err := SignPhonePe(raw, phonePePayPath, p.SaltKey, p.SaltIndex)
	if err != nil {
		return Initiation{}, err
	}

	body, _ := json.Marshal(map[string]string{
		"request": base64.StdEncoding.EncodeToString(raw),
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+phonePePayPath, bytes.NewReader(body))
	if err != nil {
		return Initiation{}, &InitiationError{Provider: p.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", checksum)

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return Initiation{}, &InitiationError{Provider: p.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Initiation{}, &InitiationError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Initiation{}, &InitiationError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: respBody}
	}

	var parsed phonePePayResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Initiation{}, &InitiationError{Provider: p.Name(), Err: err, Body: respBody}
	}
	redirect := parsed.Data.InstrumentResponse.RedirectInfo.URL
	if !parsed.Success || redirect == "" {
		return Initiation{}, &InitiationError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Err:        fmt.Errorf("pay response code %s", parsed.Code),
		}
	}
	return Initiation{
		Provider:      p.Name(),
		TransactionID: req.TransactionID,
		RedirectURL:   redirect,
	}, nil
}

type phonePeStatusResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		State          string `json:"state"`
		PaymentDetails []struct {
			TransactionID string `json:"transactionId"`
		} `json:"paymentDetails"`
	} `json:"data"`
	// The v2 order-status shape carries these at the top level instead.
	State          string `json:"state"`
	PaymentDetails []struct {
		TransactionID string `json:"transactionId"`
	} `json:"paymentDetails"`
}

// Status polls the provider status endpoint for the merchant transaction id
// and maps the raw state onto the unified status. Transport or provider
// errors degrade to StatusUnknown with the error returned for logging; a
// polling loop should treat that as "ask again later", not a failure.
func (p *PhonePe) Status(ctx context.Context, transactionID string) (StatusResult, error) {
	path := fmt.Sprintf("%s/%s/%s", phonePeStatusPath, p.MerchantID, transactionID)
	checksum, err := SignPhonePePath(path, p.SaltKey, p.SaltIndex)
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+path, nil)
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", checksum)
	httpReq.Header.Set("X-MERCHANT-ID", p.MerchantID)
	if p.Tokens != nil {
		token, tokenType, err := p.Tokens.Token(ctx)
		if err != nil {
			return StatusResult{Status: StatusUnknown}, err
		}
		httpReq.Header.Set("Authorization", fmt.Sprintf("%s %s", tokenType, token))
	}

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusResult{Status: StatusUnknown}, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var parsed phonePeStatusResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return StatusResult{Status: StatusUnknown}, err
	}
	state := parsed.Data.State
	if state == "" {
		state = parsed.State
	}
	result := StatusResult{
		Status:        normalisePhonePeState(state),
		TransactionID: transactionID,
		RawState:      state,
	}
	if len(parsed.Data.PaymentDetails) > 0 && parsed.Data.PaymentDetails[0].TransactionID != "" {
		result.TransactionID = parsed.Data.PaymentDetails[0].TransactionID
	} else if len(parsed.PaymentDetails) > 0 && parsed.PaymentDetails[0].TransactionID != "" {
		result.TransactionID = parsed.PaymentDetails[0].TransactionID
	}
	return result, nil
}
