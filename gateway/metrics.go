package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWebhook = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_total",
		Help: "Inbound webhook requests partitioned by outcome.",
	}, []string{"outcome"})

	metricWebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_webhook_duration_seconds",
		Help:    "End-to-end webhook handling time.",
		Buckets: prometheus.DefBuckets,
	})
)
