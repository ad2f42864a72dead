package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zariya-jewels/backend-store/internal/health"
)

type stubProber struct {
	dbErr    error
	redisErr error
}

func (s stubProber) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubProber) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyHealthy(t *testing.T) {
	h := health.Handler{Prober: stubProber{}, Providers: []string{"phonepe", "razorpay"}}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		DB        string   `json:"db"`
		Redis     string   `json:"redis"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.DB)
	require.Equal(t, "ok", body.Redis)
	require.Equal(t, []string{"phonepe", "razorpay"}, body.Providers)
}

func TestReadyDatabaseDown(t *testing.T) {
	h := health.Handler{Prober: stubProber{dbErr: errors.New("connection refused")}}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

func TestReadyNoProber(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
