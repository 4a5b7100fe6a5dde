package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_messages_total",
		Help: "Inbound messages partitioned by the state they arrived in and outcome.",
	}, []string{"state", "outcome"})

	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversation_transitions_total",
		Help: "State transitions partitioned by from and to state.",
	}, []string{"from", "to"})

	metricDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conversation_handle_duration_seconds",
		Help:    "Time spent handling one inbound message, including downstream calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"state"})
)
