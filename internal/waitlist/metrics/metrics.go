package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the waitlist module. All methods are
// safe on a nil receiver so services can run without metrics in tests.
type Metrics struct {
	PendingMembers prometheus.Gauge

	// Verify outcomes by outcome label
	VerifyOutcomes *prometheus.CounterVec

	// Lifecycle notifications by event type and result ("applied", "duplicate", "failed", "skipped")
	Notifications *prometheus.CounterVec

	GrantLatency prometheus.Histogram

	AuditDropped prometheus.Counter
}

// New registers the waitlist metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PendingMembers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatehouse_waitlist_pending_members",
			Help: "Number of members currently on the waitlist",
		}),
		VerifyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_verify_outcomes_total",
			Help: "Total verify commands by outcome",
		}, []string{"outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_notifications_total",
			Help: "Total lifecycle notifications handled by event type and result",
		}, []string{"event_type", "result"}),
		GrantLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatehouse_grant_duration_seconds",
			Help:    "Duration of verified-role grant calls to the platform",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_audit_dropped_total",
			Help: "Audit events dropped because the publisher buffer was full",
		}),
	}
}

// SetPending records the current waitlist size.
func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingMembers.Set(float64(n))
	}
}

// IncrementOutcome records a verify outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.VerifyOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementNotification records a handled lifecycle notification.
func (m *Metrics) IncrementNotification(eventType, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(eventType, result).Inc()
	}
}

// ObserveGrantLatency records the duration of a role-grant call.
func (m *Metrics) ObserveGrantLatency(d time.Duration) {
	if m != nil {
		m.GrantLatency.Observe(d.Seconds())
	}
}

// IncrementAuditDropped counts an audit event dropped by the publisher.
func (m *Metrics) IncrementAuditDropped() {
	if m != nil {
		m.AuditDropped.Inc()
	}
}
