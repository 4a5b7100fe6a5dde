package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stateGauge exports the current breaker state per dependency
	// (0=closed, 1=open, 2=half_open).
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Current circuit breaker state per dependency (0=closed, 1=open, 2=half_open)",
	}, []string{"dependency"})

	// opensTotal counts circuit-open transitions per dependency.
	opensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_opens_total",
		Help: "Total number of circuit open transitions per dependency",
	}, []string{"dependency"})

	// fastFailsTotal counts calls rejected while the circuit was open.
	fastFailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_fast_fails_total",
		Help: "Total number of calls rejected without contacting the dependency",
	}, []string{"dependency"})
)
