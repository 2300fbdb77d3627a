// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(externalCallsLatency, externalCallErrors) }

var (
	externalCallsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_calls_latency_seconds",
			Help:    "Latency of calls to the billing platform and the channel manager.",
			Buckets: []float64{.025, .05, .1, .2, .4, .8, 1.6, 3, 5, 10},
		},
		[]string{"service", "op", "success"},
	)

	externalCallErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_call_errors_total",
			Help: "Failed external calls by service, operation and error class.",
		},
		[]string{"service", "op", "class"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveExternalCall records one round trip to an external collaborator.
func ObserveExternalCall(service, op string, d time.Duration, success bool) {
	externalCallsLatency.WithLabelValues(norm(service), norm(op), strconv.FormatBool(success)).
		Observe(d.Seconds())
}

func IncExternalCallError(service, op, class string) {
	externalCallErrors.WithLabelValues(norm(service), norm(op), norm(class)).Inc()
}
