package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	indexed   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed reward events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = newEventMetrics()
		prometheus.MustRegister(eventRegistry.published, eventRegistry.indexed)
	})
	return eventRegistry
}

func newEventMetrics() *eventMetrics {
	return &eventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Count of committed events published to subscribers segmented by type.",
		}, []string{"type"}),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolquest",
			Subsystem: "events",
			Name:      "indexed_total",
			Help:      "Count of events written to the journal segmented by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordPublished increments the publish counter for the supplied event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordIndexed increments the journal counter. ok=false marks a write that
// failed and was dropped.
func (m *eventMetrics) RecordIndexed(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.indexed.WithLabelValues(outcome).Inc()
}
