package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_quote_latency_seconds",
		Help:    "Time to price a quote against fresh reserves",
		Buckets: prometheus.DefBuckets,
	})

	QuoteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_quote_errors_total",
		Help: "Reserve reads that failed for reasons other than a missing pool",
	})

	PoolNotFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_pool_not_found_total",
		Help: "Quote requests that hit a pair with no deployed pool",
	})

	SwapsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_submitted_total",
		Help: "Router transactions broadcast",
	})

	SwapsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_failed_total",
		Help: "Approvals or swaps that reverted or failed to broadcast",
	})
)

func init() {
	prometheus.MustRegister(
		QuoteLatency,
		QuoteErrors,
		PoolNotFound,
		SwapsSubmitted,
		SwapsFailed,
	)
}
