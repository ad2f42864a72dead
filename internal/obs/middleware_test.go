package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zariya-jewels/backend-store/internal/obs"
)

func TestHTTPObsRecordsRequestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("zariya", []float64{5, 50}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/payments/initiate"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/payments/initiate", "202"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestHTTPObsNilMetricsPassthrough(t *testing.T) {
	called := false
	handler := obs.HTTPObs{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if !called {
		t.Fatal("expected wrapped handler to run")
	}
}

func TestStatusRecorderDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := obs.NewStatusRecorder(rr)
	if rec.Status() != http.StatusOK {
		t.Fatalf("expected default 200, got %d", rec.Status())
	}
	if _, err := rec.Write([]byte("pending")); err != nil {
		t.Fatal(err)
	}
	if rec.BytesWritten() != 7 {
		t.Fatalf("expected 7 bytes, got %d", rec.BytesWritten())
	}
}
