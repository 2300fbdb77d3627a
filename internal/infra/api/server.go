package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"meu-plano/internal/domain/model"
	"meu-plano/internal/infra/redis"
	"meu-plano/internal/usecase"
)

// Options configures the optional parts of the router.
type Options struct {
	// Auth enables bearer auth on /api/v1 when set.
	Auth *AuthManager
	// Limiter caps mutations per customer when set.
	Limiter        Limiter
	MutationLimit  int
	MutationWindow time.Duration
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server exposes the channel and billing use cases over JSON.
type Server struct {
	channels usecase.ChannelUseCase
	billing  usecase.BillingUseCase
	customer model.CustomerContext
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	channels usecase.ChannelUseCase,
	billing usecase.BillingUseCase,
	customer model.CustomerContext,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{channels: channels, billing: billing, customer: customer, opts: opts, log: &l}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		Customer(s.customer.CustomerID),
		RequestLog(s.log),
		Recover(s.log),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.Auth != nil {
			r.Use(s.opts.Auth.Middleware(s.log))
		}

		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.RequestTimeout))
			r.Get("/channels", s.handleListChannels)
			r.Get("/billing/summary", s.handleSummary)
			r.Get("/billing/invoices", s.handleInvoices)
			r.Get("/billing/payment-methods", s.handlePaymentMethods)
			r.Get("/billing/coupons/{id}", s.handleCoupon)
		})

		// Mutations carry no request deadline; each external call keeps its
		// own client timeout.
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.opts.Limiter, redis.MutationKey(s.customer.CustomerID), s.opts.MutationLimit, s.opts.MutationWindow, s.log))
			r.Post("/channels/{id}", s.handleAddChannel)
			r.Delete("/channels/{id}", s.handleRemoveChannel)
			r.Post("/channels/{id}/reactivate", s.handleReactivateChannel)
			r.Post("/channels/{id}/ia", s.handleToggleIA)
		})
	})
	return r
}
