package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meu-plano/internal/infra/api"
	"meu-plano/internal/infra/metrics"
	"meu-plano/internal/infra/sched"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the channel status worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.MustRegister()
	metrics.SetBuildInfo(Version, GitCommit)

	opts := api.Options{
		MutationLimit:  a.cfg.RateLimit.Mutations,
		MutationWindow: a.cfg.RateLimit.Window,
		RequestTimeout: a.cfg.HTTP.RequestTimeout,
		Metrics:        promhttp.Handler(),
	}
	if a.limiter != nil {
		opts.Limiter = a.limiter
	}
	if a.cfg.Auth.JWTSecret != "" {
		opts.Auth = api.NewAuthManager(a.cfg.Auth.JWTSecret, a.customer.CustomerID)
	} else {
		a.log.Warn().Msg("auth.jwt_secret not set; /api/v1 is unauthenticated")
	}
	srv := api.NewServer(a.channels, a.billing, a.customer, opts, a.log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	worker := sched.NewChannelStatusWorker(a.cfg.Scheduler.SnapshotInterval, a.channels, a.customer, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(a.withCustomer(gctx))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
