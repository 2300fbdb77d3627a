package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		channelMutationsTotal,
		channelPartialMutationsTotal,
		rateLimitedTotal,
	)
}

var (
	channelMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_mutations_total",
			Help: "Channel mutations by operation and result (ok/rejected/failed/partial).",
		},
		[]string{"operation", "result"},
	)

	channelPartialMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_partial_mutations_total",
			Help: "Mutations that failed after an earlier external write succeeded.",
		},
		[]string{"operation", "failed_step"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Requests rejected by the mutation rate limiter.",
		},
	)
)

func IncMutation(operation, result string) {
	channelMutationsTotal.WithLabelValues(norm(operation), norm(result)).Inc()
}

func IncPartialMutation(operation, failedStep string) {
	channelPartialMutationsTotal.WithLabelValues(norm(operation), norm(failedStep)).Inc()
}

func IncRateLimited() {
	rateLimitedTotal.Inc()
}
