// Package metrics exposes orchestrator counters on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"shootflow-backend/internal/models"
)

type Metrics struct {
	EventsTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shootflow_events_total",
			Help: "Events appended to the order log, by event type.",
		}, []string{"type"}),
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shootflow_status_transitions_total",
			Help: "Committed order status transitions.",
		}, []string{"to"}),
	}
}

// Observe counts committed events. Registered as a lifecycle observer, so
// it only sees events that made it into the log.
func (m *Metrics) Observe(ev models.Event) {
	m.EventsTotal.WithLabelValues(ev.Type).Inc()
	if ev.Type == models.EventStatusChanged {
		if to, ok := ev.DecodePayload()["to"].(string); ok {
			m.TransitionsTotal.WithLabelValues(to).Inc()
		}
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
