package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts logical calls (after retries) by outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "httpclient_requests_total",
		Help: "Total logical downstream calls by dependency, method and outcome",
	}, []string{"dependency", "method", "outcome"})

	// requestDuration observes the duration of logical calls including
	// retries and backoff.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "httpclient_request_duration_seconds",
		Help:    "Duration of logical downstream calls including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
	}, []string{"dependency", "method"})
)
