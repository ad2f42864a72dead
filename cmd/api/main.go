package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zariya-jewels/backend-store/internal/common"
	"github.com/zariya-jewels/backend-store/internal/config"
	"github.com/zariya-jewels/backend-store/internal/health"
	"github.com/zariya-jewels/backend-store/internal/obs"
	"github.com/zariya-jewels/backend-store/internal/payment"
	"github.com/zariya-jewels/backend-store/internal/ratelimit"
	"github.com/zariya-jewels/backend-store/internal/repo"
	"github.com/zariya-jewels/backend-store/internal/resilience"
	"github.com/zariya-jewels/backend-store/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "zariya")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "zariya-store-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repo.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	store := repo.NewPayments(pool)
	providers, verifier := buildProviders(cfg, logger)

	service := &payment.Service{
		Providers:       providers,
		Verifier:        verifier,
		Store:           store,
		Logger:          logger,
		DefaultProvider: cfg.DefaultProvider,
		Currency:        cfg.CurrencyCode,
		IntentTTL:       cfg.IntentTTL,
		CallbackBaseURL: cfg.PublicBaseURL,
	}
	paymentHandler := &payment.Handler{Svc: service, Validate: validator.New()}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	rl, err := ratelimit.New(redisClient, cfg.RateLimitPerMinute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit(cfg.RequestBodyLimitBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Prober:    health.Deps{Pool: pool, Redis: redisClient},
		Providers: providerNames(providers),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/payments", func(p chi.Router) {
		p.Use(ratelimit.Middleware(rl))
		p.With(idem.Middleware).Post("/initiate", paymentHandler.Initiate)
		p.Get("/{transactionId}/status", paymentHandler.Status)
		p.With(idem.Middleware).Post("/verify", paymentHandler.Verify)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", srv.Addr).Strs("providers", providerNames(providers)).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// buildProviders constructs every gateway the configuration carries
// credentials for. Config validation has already rejected partial credential
// sets, so construction here is unconditional per provider.
func buildProviders(cfg *config.Config, logger zerolog.Logger) (map[string]payment.Provider, payment.SignatureVerifier) {
	providers := map[string]payment.Provider{}
	var verifier payment.SignatureVerifier

	if cfg.PhonePeConfigured() {
		var tokens *payment.TokenCache
		if cfg.PhonePeAuthURL != "" {
			tokens = &payment.TokenCache{
				Provider:      "phonepe",
				AuthURL:       cfg.PhonePeAuthURL,
				ClientID:      cfg.PhonePeClientID,
				ClientSecret:  cfg.PhonePeClientSecret,
				ClientVersion: cfg.PhonePeClientVersion,
				HTTP:          &http.Client{Timeout: cfg.OutboundTimeout},
			}
		}
		providers["phonepe"] = &payment.PhonePe{
			MerchantID: cfg.PhonePeMerchantID,
			SaltKey:    cfg.PhonePeSaltKey,
			SaltIndex:  cfg.PhonePeSaltIndex,
			BaseURL:    cfg.PhonePeBaseURL,
			Tokens:     tokens,
			HTTP: resilience.HTTPClient{
				Client:  &http.Client{},
				Breaker: resilience.NewBreaker("phonepe", cfg.CircuitFailureThreshold, cfg.CircuitOpenFor, logger),
				Timeout: cfg.OutboundTimeout,
			},
		}
	}
	if cfg.RazorpayConfigured() {
		rzp, err := payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise razorpay")
		}
		providers["razorpay"] = rzp
		verifier = rzp
	}
	if cfg.StripeConfigured() {
		stp, err := payment.NewStripe(cfg.StripeSecretKey, cfg.CurrencyCode)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise stripe")
		}
		providers["stripe"] = stp
	}
	return providers, verifier
}

func providerNames(providers map[string]payment.Provider) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
