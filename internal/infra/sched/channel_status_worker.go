package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain/model"
	"meu-plano/internal/infra/metrics"
	"meu-plano/internal/usecase"
)

// ChannelLoader is the part of usecase.ChannelUseCase the worker needs.
type ChannelLoader interface {
	Load(ctx context.Context, customer model.CustomerContext) ([]model.ChannelView, error)
}

var _ ChannelLoader = (usecase.ChannelUseCase)(nil)

// ChannelStatusWorker periodically reconciles the customer's channels and
// publishes the per-status counts as gauges.
type ChannelStatusWorker struct {
	interval time.Duration
	timeout  time.Duration
	channels ChannelLoader
	customer model.CustomerContext
	log      *zerolog.Logger
}

// NewChannelStatusWorker defaults interval to 15 minutes when it is not positive.
func NewChannelStatusWorker(interval time.Duration, channels ChannelLoader, customer model.CustomerContext, logger *zerolog.Logger) *ChannelStatusWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	l := logger.With().Str("component", "ChannelStatusWorker").Logger()
	return &ChannelStatusWorker{
		interval: interval,
		timeout:  30 * time.Second,
		channels: channels,
		customer: customer,
		log:      &l,
	}
}

// Run takes one snapshot right away, then one per tick until ctx is done.
func (w *ChannelStatusWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting channel status worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.snapshot(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping channel status worker")
			return ctx.Err()
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

func (w *ChannelStatusWorker) snapshot(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	views, err := w.channels.Load(runCtx, w.customer)
	if err != nil {
		w.log.Error().Err(err).Msg("channel snapshot failed")
		return
	}
	counts := Count(views)
	metrics.SetChannelsByStatus(counts)

	marked := model.MarkBillable(views, w.customer.IncludedWhatsAppSlots)
	billable := 0
	for _, v := range marked {
		if v.IsBillable {
			billable++
		}
	}
	metrics.SetBillableChannels(billable)
	w.log.Debug().
		Int("active", counts[model.ChannelStatusActive]).
		Int("pending", counts[model.ChannelStatusPending]).
		Int("billable", billable).
		Msg("channel snapshot taken")
}

// Count tallies views per display status. Every status is present in the result.
func Count(views []model.ChannelView) map[model.ChannelStatus]int {
	out := map[model.ChannelStatus]int{
		model.ChannelStatusActive:     0,
		model.ChannelStatusCancelled:  0,
		model.ChannelStatusPending:    0,
		model.ChannelStatusAContratar: 0,
	}
	for _, v := range views {
		out[v.Status]++
	}
	return out
}
