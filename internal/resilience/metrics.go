package resilience

import "github.com/prometheus/client_golang/prometheus"

// Outbound collectors, labelled by the remote function's target name.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbound_breaker_state",
		Help: "Breaker state per remote function: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_transition_total",
		Help: "Breaker state changes.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_open_total",
		Help: "Times a breaker opened.",
	}, []string{"target"})
	OutboundRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_requests_total",
		Help: "Outbound attempts by outcome (ok, error, circuit_open).",
	}, []string{"target", "outcome"})
	OutboundLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbound_request_duration_seconds",
		Help:    "Latency of single outbound attempts.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, OutboundRequests, OutboundLatency)
}
