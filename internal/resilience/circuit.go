package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen allows a single probe to determine recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// BreakerState exposes the current state per guarded provider: 0=closed, 1=open, 2=half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "provider_breaker_state",
		Help: "Current circuit breaker state per payment provider: 0=closed, 1=open, 2=half-open.",
	}, []string{"provider"})
	// BreakerOpenedTotal counts transitions into the open state.
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_breaker_open_total",
		Help: "Number of times a provider circuit breaker opened.",
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerOpenedTotal)
}

// Breaker guards one upstream payment provider and opens after a run of
// consecutive failures. A status poller that tolerates Unknown results can keep
// calling Allow cheaply while the provider is down instead of burning sockets.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	threshold int
	openedAt  time.Time
	openFor   time.Duration
	provider  string
	logger    zerolog.Logger
}

// NewBreaker constructs a breaker that opens once threshold consecutive
// failures are observed and stays open for the cool-off period.
func NewBreaker(provider string, threshold int, openFor time.Duration, logger zerolog.Logger) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		state:     Closed,
		threshold: threshold,
		openFor:   openFor,
		provider:  strings.TrimSpace(provider),
		logger:    logger,
	}
}

// Allow reports whether a request is permitted. An open breaker admits a
// single probe after the cool-off period and moves to half-open.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) >= b.openFor {
		b.transitionLocked(ctx, HalfOpen)
		return true
	}
	return false
}

// Report records the outcome of a request.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.transitionLocked(ctx, Open)
	}
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.failures = 0
	if next == Open {
		b.openedAt = time.Now()
		BreakerOpenedTotal.WithLabelValues(b.label()).Inc()
	}
	BreakerState.WithLabelValues(b.label()).Set(float64(next))

	logger := b.logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}
	logger.Info().
		Str("provider", b.label()).
		Str("from_state", prev.String()).
		Str("to_state", next.String()).
		Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.provider == "" {
		return "default"
	}
	return b.provider
}
