package metrics

import (
	"meu-plano/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		channelsByStatus,
		billableChannels,
	)
}

var (
	channelsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channels_by_status",
			Help: "Current number of channel slots by reconciled status.",
		},
		[]string{"status"}, // 'active', 'cancelled', 'pending', 'acontratar'
	)

	billableChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "channels_billable",
			Help: "Active channels beyond the plan's included slots.",
		},
	)
)

func SetChannelsByStatus(counts map[model.ChannelStatus]int) {
	statuses := []model.ChannelStatus{
		model.ChannelStatusActive,
		model.ChannelStatusCancelled,
		model.ChannelStatusPending,
		model.ChannelStatusAContratar,
	}
	// Set every status so missing ones drop to zero.
	for _, s := range statuses {
		channelsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func SetBillableChannels(n int) {
	billableChannels.Set(float64(n))
}
