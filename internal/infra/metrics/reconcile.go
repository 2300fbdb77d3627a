package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		reconcileDuration,
		reconcileTotal,
	)
}

var (
	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channel_reconcile_duration_seconds",
			Help:    "Duration of a full channel reconciliation pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_reconcile_total",
			Help: "Reconciliation passes by result.",
		},
		[]string{"result"}, // 'ok', 'error'
	)
)

func ObserveReconcile(d time.Duration, ok bool) {
	reconcileDuration.Observe(d.Seconds())
	result := "ok"
	if !ok {
		result = "error"
	}
	reconcileTotal.WithLabelValues(result).Inc()
}
