//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/usecase"
)

func fiveViews() []model.ChannelView {
	views := make([]model.ChannelView, 5)
	for i := range views {
		views[i] = model.ChannelView{ID: i, Status: model.ChannelStatusAContratar}
	}
	views[0].Status = model.ChannelStatusActive
	return views
}

func newTestServer(ch *mockChannels, bi *mockBilling, opts Options) http.Handler {
	if ch == nil {
		ch = &mockChannels{}
	}
	if bi == nil {
		bi = &mockBilling{}
	}
	return NewServer(ch, bi, testCustomer, opts, newLogger()).Router()
}

func do(h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b), rec.Body.String())
	return b
}

func TestHealth(t *testing.T) {
	rec := do(newTestServer(nil, nil, Options{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsMounted(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	rec := do(newTestServer(nil, nil, Options{Metrics: metricsHandler}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestListChannels(t *testing.T) {
	// Arrange
	ch := &mockChannels{
		LoadFunc: func(_ context.Context, c model.CustomerContext) ([]model.ChannelView, error) {
			assert.Equal(t, testCustomer, c)
			return fiveViews(), nil
		},
	}
	h := newTestServer(ch, nil, Options{})

	// Act
	rec := do(h, http.MethodGet, "/api/v1/channels", "", "X-Request-ID", "req-123")

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	var body struct {
		Items []model.ChannelView `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Items, 5)
	assert.Equal(t, model.ChannelStatusActive, body.Items[0].Status)
}

func TestChannelMutations(t *testing.T) {
	cancelAt := int64(1735689600)
	result := &usecase.MutationResult{Channels: fiveViews()}

	t.Run("add passes slot, title and IA flag", func(t *testing.T) {
		// Arrange
		var gotID int
		var gotTitle string
		var gotIA bool
		ch := &mockChannels{
			AddFunc: func(_ context.Context, _ model.CustomerContext, id int, titulo string, withIA bool) (*usecase.MutationResult, error) {
				gotID, gotTitle, gotIA = id, titulo, withIA
				return result, nil
			},
		}
		h := newTestServer(ch, nil, Options{})

		// Act
		rec := do(h, http.MethodPost, "/api/v1/channels/2", `{"titulo":"  Recepção ","with_ia":true}`)

		// Assert
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 2, gotID)
		assert.Equal(t, "Recepção", gotTitle)
		assert.True(t, gotIA)
	})

	t.Run("remove returns cancel_at", func(t *testing.T) {
		ch := &mockChannels{
			RemoveFunc: func(_ context.Context, _ model.CustomerContext, id int) (*usecase.MutationResult, error) {
				assert.Equal(t, 3, id)
				return &usecase.MutationResult{Channels: fiveViews(), CancelAt: &cancelAt}, nil
			},
		}
		rec := do(newTestServer(ch, nil, Options{}), http.MethodDelete, "/api/v1/channels/3", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var body usecase.MutationResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.NotNil(t, body.CancelAt)
		assert.Equal(t, cancelAt, *body.CancelAt)
	})

	t.Run("reactivate with empty body", func(t *testing.T) {
		ch := &mockChannels{
			ReactivateFunc: func(_ context.Context, _ model.CustomerContext, id int, withIA bool) (*usecase.MutationResult, error) {
				assert.Equal(t, 4, id)
				assert.False(t, withIA)
				return result, nil
			},
		}
		rec := do(newTestServer(ch, nil, Options{}), http.MethodPost, "/api/v1/channels/4/reactivate", "")
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("toggle IA", func(t *testing.T) {
		ch := &mockChannels{
			ToggleFunc: func(_ context.Context, _ model.CustomerContext, id int) (*usecase.MutationResult, error) {
				assert.Equal(t, 0, id)
				return &usecase.MutationResult{Channels: fiveViews(), ActiveUntil: &cancelAt}, nil
			},
		}
		rec := do(newTestServer(ch, nil, Options{}), http.MethodPost, "/api/v1/channels/0/ia", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"active_until":1735689600`)
	})

	t.Run("non numeric id is rejected before the use case", func(t *testing.T) {
		rec := do(newTestServer(&mockChannels{}, nil, Options{}), http.MethodPost, "/api/v1/channels/abc", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "canal inválido", decodeError(t, rec).Error)
	})

	t.Run("unknown body field is rejected", func(t *testing.T) {
		rec := do(newTestServer(&mockChannels{}, nil, Options{}), http.MethodPost, "/api/v1/channels/1", `{"nome":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"precondition", domain.NewUserError(domain.KindPrecondition, usecase.MsgNoActivePlan, domain.ErrNoActivePlan), http.StatusPreconditionFailed, "nenhum plano ativo"},
		{"conflict", domain.NewUserError(domain.KindConflict, "transição inválida", domain.ErrInvalidTransition), http.StatusConflict, "transição inválida"},
		{"invalid", domain.NewUserError(domain.KindInvalid, usecase.MsgSlot0NeedsIA, nil), http.StatusBadRequest, "o canal 0 exige IA"},
		{"not found", fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound, "entity not found"},
		{"rate limited upstream", fmt.Errorf("%w: stripe: slow down", domain.ErrRateLimited), http.StatusTooManyRequests, "slow down"},
		{"upstream message verbatim", fmt.Errorf("%w: stripe: Your card was declined.", domain.ErrUpstream), http.StatusBadGateway, "Your card was declined."},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ch := &mockChannels{
				LoadFunc: func(context.Context, model.CustomerContext) ([]model.ChannelView, error) { return nil, tt.err },
			}

			// Act
			rec := do(newTestServer(ch, nil, Options{}), http.MethodGet, "/api/v1/channels", "")

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error, tt.wantMsg)
		})
	}

	t.Run("partial mutation reports completed steps", func(t *testing.T) {
		pe := &domain.PartialMutationError{
			Operation: usecase.OpAddChannel, SlotID: 2,
			Completed: []string{"create_channel_billing"}, Failed: "upsert_record",
			Err: fmt.Errorf("%w: infozap 500: banco fora", domain.ErrUpstream),
		}
		ch := &mockChannels{
			AddFunc: func(context.Context, model.CustomerContext, int, string, bool) (*usecase.MutationResult, error) {
				return nil, pe
			},
		}

		rec := do(newTestServer(ch, nil, Options{}), http.MethodPost, "/api/v1/channels/2", `{"titulo":"x"}`)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		b := decodeError(t, rec)
		assert.Contains(t, b.Error, "banco fora")
		require.NotNil(t, b.Partial)
		assert.Equal(t, "upsert_record", b.Partial.Failed)
		assert.Equal(t, []string{"create_channel_billing"}, b.Partial.Completed)
	})
}

func TestRecover(t *testing.T) {
	ch := &mockChannels{
		LoadFunc: func(context.Context, model.CustomerContext) ([]model.ChannelView, error) { panic("boom") },
	}
	rec := do(newTestServer(ch, nil, Options{}), http.MethodGet, "/api/v1/channels", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec).Error)
}

func TestTimeout(t *testing.T) {
	ch := &mockChannels{
		LoadFunc: func(ctx context.Context, _ model.CustomerContext) ([]model.ChannelView, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return fiveViews(), nil
		},
	}
	rec := do(newTestServer(ch, nil, Options{RequestTimeout: time.Second}), http.MethodGet, "/api/v1/channels", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeout_SkipsMutations(t *testing.T) {
	ch := &mockChannels{
		AddFunc: func(ctx context.Context, _ model.CustomerContext, _ int, _ string, _ bool) (*usecase.MutationResult, error) {
			_, ok := ctx.Deadline()
			assert.False(t, ok, "mutations must not carry a request deadline")
			return &usecase.MutationResult{Channels: fiveViews()}, nil
		},
	}
	rec := do(newTestServer(ch, nil, Options{RequestTimeout: time.Millisecond}), http.MethodPost, "/api/v1/channels/2", `{"titulo":"Loja"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAuth(t *testing.T) {
	auth := NewAuthManager("s3cret", testCustomer.CustomerID)
	ch := &mockChannels{
		LoadFunc: func(context.Context, model.CustomerContext) ([]model.ChannelView, error) { return fiveViews(), nil },
	}
	h := newTestServer(ch, nil, Options{Auth: auth})

	valid, err := auth.Mint("owner", time.Hour)
	require.NoError(t, err)
	expired, err := auth.Mint("owner", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewAuthManager("s3cret", "cus_other").Mint("owner", time.Hour)
	require.NoError(t, err)
	badKey, err := NewAuthManager("other", testCustomer.CustomerID).Mint("owner", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + badKey, http.StatusUnauthorized},
		{"other customer", "Bearer " + foreign, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hdr []string
			if tt.header != "" {
				hdr = []string{"Authorization", tt.header}
			}
			rec := do(h, http.MethodGet, "/api/v1/channels", "", hdr...)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("health stays open", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
	})
}

func TestRateLimit(t *testing.T) {
	okResult := func(context.Context, model.CustomerContext, int) (*usecase.MutationResult, error) {
		return &usecase.MutationResult{}, nil
	}

	t.Run("second mutation in window is rejected", func(t *testing.T) {
		// Arrange
		lim := &mockLimiter{allowed: 1}
		ch := &mockChannels{ToggleFunc: okResult}
		h := newTestServer(ch, nil, Options{Limiter: lim, MutationLimit: 1, MutationWindow: time.Minute})

		// Act
		first := do(h, http.MethodPost, "/api/v1/channels/1/ia", "")
		second := do(h, http.MethodPost, "/api/v1/channels/1/ia", "")

		// Assert
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "60", second.Header().Get("Retry-After"))
		assert.Equal(t, "rate_limit:cus_test:mutations", lim.lastKey)
	})

	t.Run("reads are not limited", func(t *testing.T) {
		lim := &mockLimiter{allowed: 0}
		ch := &mockChannels{
			LoadFunc: func(context.Context, model.CustomerContext) ([]model.ChannelView, error) { return fiveViews(), nil },
		}
		h := newTestServer(ch, nil, Options{Limiter: lim, MutationLimit: 1, MutationWindow: time.Minute})

		rec := do(h, http.MethodGet, "/api/v1/channels", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, lim.calls)
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		lim := &mockLimiter{err: errors.New("redis down")}
		ch := &mockChannels{ToggleFunc: okResult}
		h := newTestServer(ch, nil, Options{Limiter: lim, MutationLimit: 1, MutationWindow: time.Minute})

		rec := do(h, http.MethodPost, "/api/v1/channels/1/ia", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBillingRoutes(t *testing.T) {
	t.Run("summary forwards the coupon", func(t *testing.T) {
		bi := &mockBilling{
			SummaryFunc: func(_ context.Context, _ model.CustomerContext, coupon string) (*model.BillingSummary, error) {
				assert.Equal(t, "DEZ", coupon)
				return &model.BillingSummary{TotalCents: 25480, TotalDisplay: "R$ 254,80"}, nil
			},
		}
		rec := do(newTestServer(nil, bi, Options{}), http.MethodGet, "/api/v1/billing/summary?coupon=DEZ", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total_cents":25480`)
	})

	t.Run("invalid coupon is a 400", func(t *testing.T) {
		bi := &mockBilling{
			CouponFunc: func(_ context.Context, id string) (*model.Coupon, error) {
				assert.Equal(t, "NOPE", id)
				return nil, domain.NewUserError(domain.KindInvalid, usecase.MsgInvalidCoupon, domain.ErrInvalidCoupon)
			},
		}
		rec := do(newTestServer(nil, bi, Options{}), http.MethodGet, "/api/v1/billing/coupons/NOPE", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "cupom inválido", decodeError(t, rec).Error)
	})

	t.Run("invoices parse limit", func(t *testing.T) {
		bi := &mockBilling{
			InvoicesFunc: func(_ context.Context, _ model.CustomerContext, limit int) ([]model.Invoice, error) {
				assert.Equal(t, 5, limit)
				return []model.Invoice{{ID: "in_1"}}, nil
			},
		}
		h := newTestServer(nil, bi, Options{})

		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/billing/invoices?limit=5", "").Code)
		assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/billing/invoices?limit=x", "").Code)
	})

	t.Run("payment methods", func(t *testing.T) {
		bi := &mockBilling{
			MethodsFunc: func(context.Context, model.CustomerContext) ([]model.PaymentMethod, error) {
				return []model.PaymentMethod{{ID: "pm_1", Brand: "visa", Last4: "4242", IsDefault: true}}, nil
			},
		}
		rec := do(newTestServer(nil, bi, Options{}), http.MethodGet, "/api/v1/billing/payment-methods", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"last4":"4242"`)
	})
}
