package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/zariya-jewels/backend-store/internal/common"
)

// Prober reports whether the backing stores answer within a deadline.
type Prober interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Deps probes the live pool and redis client.
type Deps struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func (d Deps) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Pool.Ping(ctx)
}

func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// Handler serves liveness and readiness probes. Readiness also reports which
// payment gateways the instance was configured with so a deploy with missing
// credentials is visible before traffic arrives.
type Handler struct {
	Prober       Prober
	Providers    []string
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live answers as long as the process is serving.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes the database and redis and reports per-dependency status.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Prober == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()

	dbStatus := "ok"
	if err := h.Prober.PingDB(ctx, orDefault(h.DBTimeout, 500*time.Millisecond)); err != nil {
		dbStatus = err.Error()
	}
	redisStatus := "ok"
	if err := h.Prober.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		redisStatus = err.Error()
	}

	body := map[string]any{
		"db":        dbStatus,
		"redis":     redisStatus,
		"providers": h.Providers,
	}
	status := http.StatusOK
	if dbStatus != "ok" || redisStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, body)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
