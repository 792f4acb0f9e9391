package exchange

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of an Exchange.
type Metrics struct {
	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	swapHops     prometheus.Counter
}

// NewMetrics creates the exchange collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "exchange",
				Name:      "calls_total",
				Help:      "Exchange calls by method and result (ok or error).",
			},
			[]string{"method", "result"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "amm",
				Subsystem: "exchange",
				Name:      "call_duration_seconds",
				Help:      "Time spent executing exchange calls, lock wait excluded.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"method"},
		),
		swapHops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "amm",
				Subsystem: "exchange",
				Name:      "swap_hops_total",
				Help:      "Pair hops executed by successful swaps.",
			},
		),
	}
	reg.MustRegister(m.calls, m.callDuration, m.swapHops)
	return m
}
