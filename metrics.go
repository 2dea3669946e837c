package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts activity events in Prometheus
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers the auth counters with reg
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caribevibes",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Authentication events by type.",
	}, []string{"event"})

	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}

	return &MetricsSink{events: events}, nil
}

// Record implements ActivitySink.
func (m *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	m.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Collector exposes the underlying counter vector
func (m *MetricsSink) Collector() *prometheus.CounterVec {
	return m.events
}
