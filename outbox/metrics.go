package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox publish attempts partitioned by event type and outcome.",
	}, []string{"event_type", "outcome"})

	metricDrainErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_drain_errors_total",
		Help: "Failed outbox fetch cycles.",
	})
)
