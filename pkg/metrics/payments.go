package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records dispatch, gateway, reconciliation and shipping activity.
type PaymentMetrics struct {
	dispatched  *prometheus.CounterVec
	gateway     *prometheus.HistogramVec
	callbacks   *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_dispatched_total",
		Help: "Payment dispatch attempts by method and outcome.",
	}, []string{"method", "outcome"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Gateway callbacks by reconciliation result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "line_item_transitions_total",
		Help: "Applied line item status transitions.",
	}, []string{"status"})
	reg.MustRegister(dispatched, gateway, callbacks, transitions)
	return &PaymentMetrics{
		dispatched:  dispatched,
		gateway:     gateway,
		callbacks:   callbacks,
		transitions: transitions,
	}
}

func (m *PaymentMetrics) IncDispatched(method, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) ObserveGateway(kind, outcome string, duration time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *PaymentMetrics) IncCallback(result string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *PaymentMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
