package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/zariya-jewels/backend-store/internal/ratelimit"
)

func newLimited(t *testing.T, perMinute int) http.Handler {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := ratelimit.New(client, perMinute)
	require.NoError(t, err)

	return ratelimit.Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimitUnderLimit(t *testing.T) {
	h := newLimited(t, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/TXN-1/status", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitExceeded(t *testing.T) {
	h := newLimited(t, 2)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/TXN-1/status", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Contains(t, last.Body.String(), "RATE_LIMITED")
}

func TestRateLimitPerClient(t *testing.T) {
	h := newLimited(t, 1)

	first := httptest.NewRequest(http.MethodGet, "/x", nil)
	first.RemoteAddr = "10.0.0.3:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different client is not affected by the first client's quota.
	second := httptest.NewRequest(http.MethodGet, "/x", nil)
	second.RemoteAddr = "10.0.0.4:1"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitNilLimiterPasses(t *testing.T) {
	h := ratelimit.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
