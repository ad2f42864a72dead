package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with a per-call deadline and an optional
// circuit breaker. Payment initiation must never be replayed automatically, so
// unlike a generic retrying client this one performs exactly one attempt; the
// decision to retry belongs to a human or a higher-level job.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// Do executes the request once. When the breaker is open ErrOpenCircuit is
// returned without touching the network. A response with status >= 500 counts
// as a failure for the breaker but is still returned to the caller, which owns
// the error translation.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if cl.Breaker != nil {
		success := err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError
		cl.Breaker.Report(ctx, success)
	}
	if err != nil {
		cancel()
		return resp, err
	}
	// The deadline covers the body too: cancelling here would abort reads the
	// caller performs after Do returns, so the context lives until Close.
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, err
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
