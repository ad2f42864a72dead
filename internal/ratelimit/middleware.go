package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/zariya-jewels/backend-store/internal/common"
)

// New builds a redis-backed limiter allowing max requests per minute per
// client IP.
func New(rdb *redis.Client, perMinute int) (*limiter.Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "rl"})
	if err != nil {
		return nil, err
	}
	rate := limiter.Rate{Period: time.Minute, Limit: int64(perMinute)}
	return limiter.New(store, rate), nil
}

// Middleware enforces the limit before delegating. A limiter store error
// fails open: payments must not break because redis hiccupped.
func Middleware(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			lctx, err := l.Get(r.Context(), l.GetIPKey(r))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
