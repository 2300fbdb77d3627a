// File: internal/infra/adapters/stripe/gateway.go
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripelib "github.com/stripe/stripe-go/v82"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/infra/metrics"
)

var (
	_ adapter.BillingGateway  = (*Gateway)(nil)
	_ adapter.ProductResolver = (*Gateway)(nil)
)

const service = "stripe"

// Gateway implements the billing ports over stripe-go.
type Gateway struct {
	api          api
	planPriceIDs map[string]bool
	log          *zerolog.Logger
}

// NewGateway configures stripe-go for the process and returns the gateway.
// planPriceIDs help HasActivePlan when plan subscriptions carry no metadata.
func NewGateway(secretKey string, planPriceIDs []string, timeout time.Duration, logger *zerolog.Logger) (*Gateway, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("stripe secret key empty")
	}
	configure(secretKey, timeout)
	return newGateway(liveAPI(), planPriceIDs, logger), nil
}

func newGateway(a api, planPriceIDs []string, logger *zerolog.Logger) *Gateway {
	ids := make(map[string]bool, len(planPriceIDs))
	for _, id := range planPriceIDs {
		ids[id] = true
	}
	l := logger.With().Str("component", "StripeGateway").Logger()
	return &Gateway{api: a, planPriceIDs: ids, log: &l}
}

// observe records latency and classifies err. It returns the classified error.
func (g *Gateway) observe(op string, start time.Time, err error) error {
	if err == nil {
		metrics.ObserveExternalCall(service, op, time.Since(start), true)
		return nil
	}
	cerr := classify(err)
	metrics.ObserveExternalCall(service, op, time.Since(start), false)
	metrics.IncExternalCallError(service, op, errClass(cerr))
	return cerr
}

func (g *Gateway) getItem(ctx context.Context, id string) (*stripelib.SubscriptionItem, error) {
	start := time.Now()
	p := &stripelib.SubscriptionItemParams{}
	p.Context = ctx
	it, err := g.api.getItem(id, p)
	return it, g.observe("get_item", start, err)
}

func (g *Gateway) getSubscription(ctx context.Context, id string) (*stripelib.Subscription, error) {
	start := time.Now()
	p := &stripelib.SubscriptionParams{}
	p.Context = ctx
	sub, err := g.api.getSubscription(id, p)
	return sub, g.observe("get_subscription", start, err)
}

// CheckSubscriptionStatus accepts an item id (si_) or a subscription id.
func (g *Gateway) CheckSubscriptionStatus(ctx context.Context, id string) (model.BillingStatus, error) {
	if strings.HasPrefix(id, "si_") {
		item, err := g.getItem(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return model.BillingStatus{}, nil
		}
		if err != nil {
			return model.BillingStatus{}, fmt.Errorf("check %s: %w", id, err)
		}
		sub, err := g.getSubscription(ctx, item.Subscription)
		if errors.Is(err, domain.ErrNotFound) {
			return model.BillingStatus{}, nil
		}
		if err != nil {
			return model.BillingStatus{}, fmt.Errorf("check %s: %w", id, err)
		}
		return billingStatus(sub, item.CurrentPeriodEnd), nil
	}

	sub, err := g.getSubscription(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return model.BillingStatus{}, nil
	}
	if err != nil {
		return model.BillingStatus{}, fmt.Errorf("check %s: %w", id, err)
	}
	var periodEnd int64
	if it := firstItem(sub); it != nil {
		periodEnd = it.CurrentPeriodEnd
	}
	return billingStatus(sub, periodEnd), nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (model.CreatedSubscription, error) {
	p := &stripelib.SubscriptionParams{
		Customer: stripelib.String(customerID),
		Items: []*stripelib.SubscriptionItemsParams{
			{Price: stripelib.String(priceID), Metadata: metadata},
		},
		Metadata: metadata,
	}
	p.Context = ctx

	start := time.Now()
	sub, err := g.api.newSubscription(p)
	if err = g.observe("create_subscription", start, err); err != nil {
		return model.CreatedSubscription{}, fmt.Errorf("create subscription for %s: %w", priceID, err)
	}
	it := firstItem(sub)
	if it == nil {
		return model.CreatedSubscription{}, fmt.Errorf("%w: subscription %s has no items", domain.ErrUpstream, sub.ID)
	}
	g.log.Info().Str("subscription_id", sub.ID).Str("item_id", it.ID).Str("price_id", priceID).Msg("subscription created")
	return model.CreatedSubscription{
		SubscriptionID:     sub.ID,
		SubscriptionItemID: it.ID,
		CurrentPeriodEnd:   it.CurrentPeriodEnd,
	}, nil
}

// CancelChannelSubscription schedules both subscriptions to end at period end.
// The channel's cancel time wins when both report one.
func (g *Gateway) CancelChannelSubscription(ctx context.Context, channelItemID, iaItemID string) (int64, error) {
	var cancelAt int64
	for _, id := range []string{channelItemID, iaItemID} {
		if id == "" {
			continue
		}
		at, err := g.cancelAtPeriodEnd(ctx, id)
		if err != nil {
			return 0, err
		}
		if cancelAt == 0 {
			cancelAt = at
		}
	}
	return cancelAt, nil
}

func (g *Gateway) cancelAtPeriodEnd(ctx context.Context, itemID string) (int64, error) {
	item, err := g.getItem(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("cancel %s: %w", itemID, err)
	}
	p := &stripelib.SubscriptionParams{CancelAtPeriodEnd: stripelib.Bool(true)}
	p.Context = ctx

	start := time.Now()
	sub, err := g.api.updateSubscription(item.Subscription, p)
	if err = g.observe("cancel_at_period_end", start, err); err != nil {
		return 0, fmt.Errorf("cancel %s: %w", itemID, err)
	}
	g.log.Info().Str("subscription_id", sub.ID).Str("item_id", itemID).Msg("subscription set to cancel at period end")
	if sub.CancelAt > 0 {
		return sub.CancelAt, nil
	}
	return item.CurrentPeriodEnd, nil
}

// RemoveIASubscription removes the IA item right away. Stripe refuses to drop
// the last item of a subscription, so a single-item subscription is cancelled.
func (g *Gateway) RemoveIASubscription(ctx context.Context, iaItemID string) (int64, error) {
	item, err := g.getItem(ctx, iaItemID)
	if err != nil {
		return 0, fmt.Errorf("remove IA %s: %w", iaItemID, err)
	}
	until := item.CurrentPeriodEnd

	sub, err := g.getSubscription(ctx, item.Subscription)
	if err != nil {
		return 0, fmt.Errorf("remove IA %s: %w", iaItemID, err)
	}

	start := time.Now()
	if itemCount(sub) <= 1 {
		p := &stripelib.SubscriptionCancelParams{}
		p.Context = ctx
		_, err = g.api.cancelSubscription(sub.ID, p)
		err = g.observe("cancel_subscription", start, err)
	} else {
		p := &stripelib.SubscriptionParams{
			Items: []*stripelib.SubscriptionItemsParams{
				{ID: stripelib.String(iaItemID), Deleted: stripelib.Bool(true)},
			},
			ProrationBehavior: stripelib.String("none"),
		}
		p.Context = ctx
		_, err = g.api.updateSubscription(sub.ID, p)
		err = g.observe("delete_item", start, err)
	}
	if err != nil {
		return 0, fmt.Errorf("remove IA %s: %w", iaItemID, err)
	}
	g.log.Info().Str("subscription_id", sub.ID).Str("item_id", iaItemID).Int64("active_until", until).Msg("IA subscription removed")
	return until, nil
}

func (g *Gateway) listSubscriptions(ctx context.Context, customerID string) ([]*stripelib.Subscription, error) {
	p := &stripelib.SubscriptionListParams{Customer: stripelib.String(customerID)}
	p.Context = ctx

	start := time.Now()
	subs, err := g.api.listSubscriptions(p)
	if err = g.observe("list_subscriptions", start, err); err != nil {
		return nil, err
	}
	out := subs[:0]
	for _, s := range subs {
		if isLive(s.Status) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *Gateway) HasActivePlan(ctx context.Context, customerID string) (bool, error) {
	subs, err := g.listSubscriptions(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("check plan: %w", err)
	}
	for _, s := range subs {
		if g.isPlan(s) {
			return true, nil
		}
	}
	return false, nil
}

// isPlan: explicit type, then configured plan prices. Untyped subscriptions
// count as a plan only when no plan prices are configured.
func (g *Gateway) isPlan(sub *stripelib.Subscription) bool {
	switch subscriptionType(sub) {
	case string(model.CategoryPlan):
		return true
	case "":
	default:
		return false
	}
	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			if it.Price != nil && g.planPriceIDs[it.Price.ID] {
				return true
			}
		}
	}
	return len(g.planPriceIDs) == 0
}

func (g *Gateway) ListActiveSubscriptions(ctx context.Context, customerID string) ([]model.Subscription, error) {
	subs, err := g.listSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out := make([]model.Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, mapSubscription(s))
	}
	return out, nil
}

func (g *Gateway) ResolveProduct(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	if p, ok := ref.Expanded(); ok {
		return p, nil
	}
	if ref.ID() == "" {
		return model.Product{}, fmt.Errorf("%w: empty product id", domain.ErrInvalidArgument)
	}
	p := &stripelib.ProductParams{}
	p.Context = ctx

	start := time.Now()
	prod, err := g.api.getProduct(ref.ID(), p)
	if err = g.observe("get_product", start, err); err != nil {
		return model.Product{}, fmt.Errorf("get product %s: %w", ref.ID(), err)
	}
	return mapProduct(prod), nil
}

func (g *Gateway) GetCoupon(ctx context.Context, couponID string) (*model.Coupon, error) {
	p := &stripelib.CouponParams{}
	p.Context = ctx

	start := time.Now()
	c, err := g.api.getCoupon(couponID, p)
	if err = g.observe("get_coupon", start, err); err != nil {
		return nil, fmt.Errorf("get coupon %s: %w", couponID, err)
	}
	return mapCoupon(c), nil
}

func (g *Gateway) ListInvoices(ctx context.Context, customerID string, limit int) ([]model.Invoice, error) {
	p := &stripelib.InvoiceListParams{Customer: stripelib.String(customerID)}
	p.Context = ctx
	p.Limit = stripelib.Int64(int64(limit))

	start := time.Now()
	invs, err := g.api.listInvoices(p, limit)
	if err = g.observe("list_invoices", start, err); err != nil {
		return nil, err
	}
	out := make([]model.Invoice, 0, len(invs))
	for _, in := range invs {
		out = append(out, mapInvoice(in))
	}
	return out, nil
}

func (g *Gateway) ListPaymentMethods(ctx context.Context, customerID string) ([]model.PaymentMethod, error) {
	cp := &stripelib.CustomerParams{}
	cp.Context = ctx
	start := time.Now()
	cust, err := g.api.getCustomer(customerID, cp)
	if err = g.observe("get_customer", start, err); err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	var defaultID string
	if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
		defaultID = cust.InvoiceSettings.DefaultPaymentMethod.ID
	}

	p := &stripelib.PaymentMethodListParams{
		Customer: stripelib.String(customerID),
		Type:     stripelib.String(string(stripelib.PaymentMethodTypeCard)),
	}
	p.Context = ctx
	start = time.Now()
	pms, err := g.api.listPaymentMethods(p)
	if err = g.observe("list_payment_methods", start, err); err != nil {
		return nil, err
	}
	out := make([]model.PaymentMethod, 0, len(pms))
	for _, pm := range pms {
		out = append(out, mapPaymentMethod(pm, defaultID))
	}
	return out, nil
}
