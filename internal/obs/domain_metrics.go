package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentInitiateTotal counts payment initiation attempts by provider and outcome.
	PaymentInitiateTotal *prometheus.CounterVec
	// PaymentStatusPollTotal counts status reconciliation polls by provider and resolved status.
	PaymentStatusPollTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts signature verification outcomes.
	PaymentVerifyTotal *prometheus.CounterVec
	// ProviderTokenRefreshTotal counts OAuth token refreshes against provider auth endpoints.
	ProviderTokenRefreshTotal *prometheus.CounterVec
	// ReminderEmailTotal counts abandoned-checkout reminder email outcomes.
	ReminderEmailTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentInitiateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_initiate_total",
			Help:      "Count of payment initiation outcomes.",
		}, []string{"provider", "result"})
		PaymentStatusPollTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_status_poll_total",
			Help:      "Count of payment status polls by resolved status.",
		}, []string{"provider", "status"})
		PaymentVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of payment signature verification outcomes.",
		}, []string{"result"})
		ProviderTokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_token_refresh_total",
			Help:      "Count of provider OAuth token refresh outcomes.",
		}, []string{"provider", "result"})
		ReminderEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_email_total",
			Help:      "Count of abandoned-checkout reminder email outcomes.",
		}, []string{"result"})

		PaymentInitiateTotal = registerCounterVec(reg, PaymentInitiateTotal)
		PaymentStatusPollTotal = registerCounterVec(reg, PaymentStatusPollTotal)
		PaymentVerifyTotal = registerCounterVec(reg, PaymentVerifyTotal)
		ProviderTokenRefreshTotal = registerCounterVec(reg, ProviderTokenRefreshTotal)
		ReminderEmailTotal = registerCounterVec(reg, ReminderEmailTotal)
	})
}
