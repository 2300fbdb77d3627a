package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"meu-plano/internal/config"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/domain/ports/repository"
	"meu-plano/internal/infra/adapters/infozap"
	"meu-plano/internal/infra/adapters/stripe"
	pg "meu-plano/internal/infra/db/postgres"
	"meu-plano/internal/infra/logging"
	red "meu-plano/internal/infra/redis"
	"meu-plano/internal/usecase"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *zerolog.Logger
	customer model.CustomerContext
	channels usecase.ChannelUseCase
	billing  usecase.BillingUseCase
	journal  repository.MutationJournal // nil without a database
	limiter  *red.RateLimiter           // nil without redis
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp loads config and wires adapters and use cases. Postgres and Redis
// are optional: without them the journal, product cache and rate limiter are
// left out.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath, devMode)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	a := &app{cfg: cfg, log: logger}

	customer, err := model.NewCustomerContext(cfg.Customer.ID, cfg.Customer.IncludedWhatsAppSlots)
	if err != nil {
		return nil, fmt.Errorf("customer: %w", err)
	}
	a.customer = customer

	catalog, err := model.NewCatalog(cfg.CatalogSlots())
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	gateway, err := stripe.NewGateway(cfg.Stripe.SecretKey, cfg.Stripe.PlanPriceIDs, cfg.Stripe.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	logger.Debug().Str("stripe_key", logging.Redact(cfg.Stripe.SecretKey, cfg.Runtime.Dev)).Msg("stripe gateway ready")
	store, err := infozap.NewClient(cfg.Infozap.BaseURL, cfg.Infozap.Token, cfg.Infozap.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("infozap: %w", err)
	}

	// ---- Postgres (optional) ----
	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.journal = pg.NewJournalRepo(pool)
	} else {
		logger.Info().Msg("database.url not set; mutation journal disabled")
	}

	// ---- Redis (optional) ----
	var products adapter.ProductResolver = gateway
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		products = red.NewProductCacheDecorator(gateway, rc, cfg.Redis.TTL, logger)
		a.limiter = red.NewRateLimiter(rc)
	} else {
		logger.Info().Msg("redis.url not set; product cache and rate limiting disabled")
	}

	a.channels = usecase.NewChannelUseCase(catalog, gateway, store, a.journal, logger)
	a.billing = usecase.NewBillingUseCase(gateway, products, a.channels, cfg.Stripe.PlanPriceIDs, logger)
	return a, nil
}

// withCustomer tags ctx so logs carry the customer id.
func (a *app) withCustomer(ctx context.Context) context.Context {
	return logging.WithCustomerID(ctx, a.customer.CustomerID)
}
