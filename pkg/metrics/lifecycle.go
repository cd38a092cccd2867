package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics tracks booking and payment state machine activity.
type LifecycleMetrics struct {
	bookingTransitions *prometheus.CounterVec
	paymentOutcomes    *prometheus.CounterVec
	conflictRejections prometheus.Counter
	outboxPublished    prometheus.Counter
	outboxFailed       prometheus.Counter
}

// NewLifecycleMetrics registers the lifecycle metrics on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	bookingTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Booking status transitions by from/to status.",
	}, []string{"from", "to"})
	paymentOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Terminal payment outcomes by status.",
	}, []string{"status"})
	conflictRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflict_rejections_total",
		Help: "Booking requests rejected by the availability conflict check.",
	})
	outboxPublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox rows successfully published.",
	})
	outboxFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed.",
	})
	reg.MustRegister(bookingTransitions, paymentOutcomes, conflictRejections, outboxPublished, outboxFailed)
	return &LifecycleMetrics{
		bookingTransitions: bookingTransitions,
		paymentOutcomes:    paymentOutcomes,
		conflictRejections: conflictRejections,
		outboxPublished:    outboxPublished,
		outboxFailed:       outboxFailed,
	}
}

// IncBookingTransition records a booking moving between statuses.
func (m *LifecycleMetrics) IncBookingTransition(from, to string) {
	if m == nil || m.bookingTransitions == nil {
		return
	}
	m.bookingTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncPaymentOutcome records a payment reaching a terminal status.
func (m *LifecycleMetrics) IncPaymentOutcome(status string) {
	if m == nil || m.paymentOutcomes == nil {
		return
	}
	m.paymentOutcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncConflictRejection records a booking rejected for overlapping an existing one.
func (m *LifecycleMetrics) IncConflictRejection() {
	if m == nil || m.conflictRejections == nil {
		return
	}
	m.conflictRejections.Inc()
}

// IncOutboxPublished records a successfully published outbox row.
func (m *LifecycleMetrics) IncOutboxPublished() {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.Inc()
}

// IncOutboxFailed records an outbox publish failure.
func (m *LifecycleMetrics) IncOutboxFailed() {
	if m == nil || m.outboxFailed == nil {
		return
	}
	m.outboxFailed.Inc()
}
