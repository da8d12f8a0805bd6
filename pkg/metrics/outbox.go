package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher batches and per-event outcomes.
type OutboxMetrics struct {
	batch  *prometheus.HistogramVec
	events *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	batch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox events by event type and publish outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(batch, events)
	return &OutboxMetrics{batch: batch, events: events}
}

func (o *OutboxMetrics) ObserveBatch(result string, duration time.Duration) {
	if o == nil || o.batch == nil {
		return
	}
	o.batch.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

func (o *OutboxMetrics) IncEvent(eventType, outcome string) {
	if o == nil || o.events == nil {
		return
	}
	o.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
