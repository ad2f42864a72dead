package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	PublicBaseURL   string
	CurrencyCode    string
	DefaultProvider string
	IntentTTL       time.Duration
	IdempotencyTTL  time.Duration

	PhonePeMerchantID    string
	PhonePeSaltKey       string
	PhonePeSaltIndex     string
	PhonePeBaseURL       string
	PhonePeAuthURL       string
	PhonePeClientID      string
	PhonePeClientSecret  string
	PhonePeClientVersion string

	RazorpayKeyID     string
	RazorpayKeySecret string

	StripeSecretKey string

	OutboundTimeout         time.Duration
	CircuitFailureThreshold int
	CircuitOpenFor          time.Duration
	RateLimitPerMinute      int
	RequestBodyLimitBytes   int64

	ReminderEnabled   bool
	ReminderInterval  time.Duration
	ReminderStaleAge  time.Duration
	ReminderBatchSize int
	ReminderFromEmail string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PublicBaseURL:   strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		CurrencyCode:    valueOrDefault(k.String("CURRENCY_CODE"), "INR"),
		DefaultProvider: strings.ToLower(valueOrDefault(k.String("PAYMENT_PROVIDER"), "phonepe")),
		IntentTTL:       parseDuration(k.String("PAYMENT_INTENT_TTL"), "15m"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		PhonePeMerchantID:    k.String("PHONEPE_MERCHANT_ID"),
		PhonePeSaltKey:       k.String("PHONEPE_SALT_KEY"),
		PhonePeSaltIndex:     valueOrDefault(k.String("PHONEPE_SALT_INDEX"), "1"),
		PhonePeBaseURL:       valueOrDefault(k.String("PHONEPE_BASE_URL"), "https://api.phonepe.com/apis/hermes"),
		PhonePeAuthURL:       k.String("PHONEPE_AUTH_URL"),
		PhonePeClientID:      k.String("PHONEPE_CLIENT_ID"),
		PhonePeClientSecret:  k.String("PHONEPE_CLIENT_SECRET"),
		PhonePeClientVersion: valueOrDefault(k.String("PHONEPE_CLIENT_VERSION"), "1"),

		RazorpayKeyID:     k.String("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: k.String("RAZORPAY_KEY_SECRET"),

		StripeSecretKey: k.String("STRIPE_SECRET_KEY"),

		OutboundTimeout:         parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		CircuitFailureThreshold: intOrDefault(k.Int("CIRCUIT_FAILURE_THRESHOLD"), 5),
		CircuitOpenFor:          parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		RateLimitPerMinute:      intOrDefault(k.Int("RATE_LIMIT_PER_MINUTE"), 60),
		RequestBodyLimitBytes:   int64(intOrDefault(k.Int("REQUEST_BODY_LIMIT_BYTES"), 1<<20)),

		ReminderEnabled:   parseBool(valueOrDefault(k.String("REMINDER_ENABLED"), "true")),
		ReminderInterval:  parseDuration(k.String("REMINDER_INTERVAL"), "1h"),
		ReminderStaleAge:  parseDuration(k.String("REMINDER_STALE_AGE"), "6h"),
		ReminderBatchSize: intOrDefault(k.Int("REMINDER_BATCH_SIZE"), 100),
		ReminderFromEmail: valueOrDefault(k.String("REMINDER_FROM_EMAIL"), "orders@zariyajewels.example"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if err := cfg.validateProviders(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateProviders fails fast when the credentials for a configured provider
// are incomplete. A missing credential must never surface later as an unsigned
// or unauthenticated request.
func (c *Config) validateProviders() error {
	var missing []string
	if c.PhonePeConfigured() {
		if c.PhonePeMerchantID == "" {
			missing = append(missing, "PHONEPE_MERCHANT_ID")
		}
		if c.PhonePeSaltKey == "" {
			missing = append(missing, "PHONEPE_SALT_KEY")
		}
	}
	if (c.RazorpayKeyID == "") != (c.RazorpayKeySecret == "") {
		missing = append(missing, "RAZORPAY_KEY_ID+RAZORPAY_KEY_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete provider credentials: %s", strings.Join(missing, ", "))
	}
	if !c.PhonePeConfigured() && !c.RazorpayConfigured() && !c.StripeConfigured() {
		return errors.New("no payment provider configured")
	}
	return nil
}

// PhonePeConfigured reports whether any PhonePe credential is present.
func (c *Config) PhonePeConfigured() bool {
	return c.PhonePeMerchantID != "" || c.PhonePeSaltKey != ""
}

// RazorpayConfigured reports whether the Razorpay key pair is present.
func (c *Config) RazorpayConfigured() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// StripeConfigured reports whether the Stripe secret key is present.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != ""
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intOrDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
