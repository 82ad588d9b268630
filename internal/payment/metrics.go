package payment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricPaymentAttemptsTotal  = "payment_attempts_total"
	MetricWebhookEventsTotal    = "payment_webhook_events_total"
	MetricOrphanedEventsTotal   = "payment_orphaned_events_total"
	MetricDuplicateEventsTotal  = "payment_duplicate_events_total"
	MetricChargebackEventsTotal = "payment_chargeback_events_total"
	MetricSweepResolvedTotal    = "payment_sweep_resolved_total"
)

// Metrics contains Prometheus metrics for payment operations.
// All operations are thread-safe.
type Metrics struct {
	attempts    *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	orphaned    *prometheus.CounterVec
	duplicates  *prometheus.CounterVec
	chargebacks *prometheus.CounterVec
	swept       *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all
// collectors initialized. The metrics are not registered; call Register
// to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPaymentAttemptsTotal,
				Help: "Total number of payment creation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWebhookEventsTotal,
				Help: "Total number of webhook events by provider, kind, and result",
			},
			[]string{"provider", "kind", "result"},
		),
		orphaned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricOrphanedEventsTotal,
				Help: "Total number of verified webhook events with no matching payment row",
			},
			[]string{"provider"},
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDuplicateEventsTotal,
				Help: "Total number of redelivered webhook events ignored as duplicates",
			},
			[]string{"provider"},
		),
		chargebacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricChargebackEventsTotal,
				Help: "Total number of chargeback/dispute events recorded for manual review",
			},
			[]string{"provider"},
		),
		swept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSweepResolvedTotal,
				Help: "Total number of stale pending payments resolved by the status sweep",
			},
			[]string{"provider", "resolution"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.attempts, m.webhooks, m.orphaned, m.duplicates, m.chargebacks, m.swept,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncAttempt increments the payment attempt counter.
func (m *Metrics) IncAttempt(provider Provider, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(provider), outcome).Inc()
}

// IncWebhook increments the webhook event counter.
func (m *Metrics) IncWebhook(provider Provider, kind EventKind, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(string(provider), string(kind), result).Inc()
}

// IncOrphaned increments the orphaned event counter.
func (m *Metrics) IncOrphaned(provider Provider) {
	if m == nil {
		return
	}
	m.orphaned.WithLabelValues(string(provider)).Inc()
}

// IncDuplicate increments the duplicate delivery counter.
func (m *Metrics) IncDuplicate(provider Provider) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(string(provider)).Inc()
}

// IncChargeback increments the chargeback counter.
func (m *Metrics) IncChargeback(provider Provider) {
	if m == nil {
		return
	}
	m.chargebacks.WithLabelValues(string(provider)).Inc()
}

// IncSwept increments the sweep resolution counter.
func (m *Metrics) IncSwept(provider Provider, resolution string) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues(string(provider), resolution).Inc()
}
