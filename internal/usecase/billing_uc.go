// File: internal/usecase/billing_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/infra/logging"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

const MsgInvalidCoupon = "cupom inválido"

const (
	defaultInvoiceLimit = 10
	maxInvoiceLimit     = 100
)

type BillingUseCase interface {
	// Summary aggregates the customer's active subscriptions per category and
	// flags which channels are billed beyond the plan's included slots.
	Summary(ctx context.Context, customer model.CustomerContext, couponID string) (*model.BillingSummary, error)
	ListInvoices(ctx context.Context, customer model.CustomerContext, limit int) ([]model.Invoice, error)
	ListPaymentMethods(ctx context.Context, customer model.CustomerContext) ([]model.PaymentMethod, error)
	ValidateCoupon(ctx context.Context, couponID string) (*model.Coupon, error)
}

type billingUC struct {
	billing      adapter.BillingGateway
	products     adapter.ProductResolver
	channels     ChannelUseCase
	planPriceIDs map[string]bool
	log          *zerolog.Logger
}

// NewBillingUseCase builds the summary use case. planPriceIDs identify the
// main plan subscription when its metadata carries no type.
func NewBillingUseCase(
	billing adapter.BillingGateway,
	products adapter.ProductResolver,
	channels ChannelUseCase,
	planPriceIDs []string,
	logger *zerolog.Logger,
) *billingUC {
	l := logger.With().Str("component", "BillingUseCase").Logger()
	ids := lo.SliceToMap(planPriceIDs, func(id string) (string, bool) { return id, true })
	return &billingUC{billing: billing, products: products, channels: channels, planPriceIDs: ids, log: &l}
}

func (uc *billingUC) Summary(ctx context.Context, customer model.CustomerContext, couponID string) (*model.BillingSummary, error) {
	defer logging.TraceDuration(uc.log, "BillingUC.Summary")()

	var coupon *model.Coupon
	if strings.TrimSpace(couponID) != "" {
		c, err := uc.ValidateCoupon(ctx, couponID)
		if err != nil {
			return nil, err
		}
		coupon = c
	}

	var (
		subs  []model.Subscription
		views []model.ChannelView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subs, err = uc.billing.ListActiveSubscriptions(gctx, customer.CustomerID)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		views, err = uc.channels.Load(gctx, customer)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	products, err := uc.resolveProducts(ctx, subs)
	if err != nil {
		return nil, err
	}

	planIdx := uc.mainPlanIndex(subs, products)
	totals := make(map[model.BillingCategory]int64)
	included := customer.IncludedWhatsAppSlots
	for si, sub := range subs {
		for ii, item := range sub.Items {
			product := products[item.Product.ID()]
			cat := model.ClassifyItem(item, product, si == planIdx && ii == 0)
			totals[cat] += model.ItemTotal(item)
			if cat == model.CategoryPlan {
				if n, ok := includedSlots(item, product); ok {
					included = n
				}
			}
		}
	}

	s := model.BuildSummary(totals, coupon)
	s.IncludedWhatsAppSlots = included
	s.Channels = model.MarkBillable(views, included)

	uc.log.Debug().
		Int("subscriptions", len(subs)).
		Int64("total_cents", s.TotalCents).
		Int64("discount_cents", s.DiscountCents).
		Msg("billing summary built")
	return &s, nil
}

func (uc *billingUC) ListInvoices(ctx context.Context, customer model.CustomerContext, limit int) ([]model.Invoice, error) {
	switch {
	case limit <= 0:
		limit = defaultInvoiceLimit
	case limit > maxInvoiceLimit:
		limit = maxInvoiceLimit
	}
	inv, err := uc.billing.ListInvoices(ctx, customer.CustomerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return inv, nil
}

func (uc *billingUC) ListPaymentMethods(ctx context.Context, customer model.CustomerContext) ([]model.PaymentMethod, error) {
	pms, err := uc.billing.ListPaymentMethods(ctx, customer.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return pms, nil
}

func (uc *billingUC) ValidateCoupon(ctx context.Context, couponID string) (*model.Coupon, error) {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return nil, domain.NewUserError(domain.KindInvalid, MsgInvalidCoupon, domain.ErrInvalidCoupon)
	}
	c, err := uc.billing.GetCoupon(ctx, couponID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewUserError(domain.KindInvalid, MsgInvalidCoupon, domain.ErrInvalidCoupon)
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if c == nil || !c.Valid || (c.PercentOff <= 0 && c.AmountOff <= 0) {
		return nil, domain.NewUserError(domain.KindInvalid, MsgInvalidCoupon, domain.ErrInvalidCoupon)
	}
	return c, nil
}

// resolveProducts fetches every distinct product referenced by the items.
func (uc *billingUC) resolveProducts(ctx context.Context, subs []model.Subscription) (map[string]model.Product, error) {
	refs := make(map[string]model.ProductRef)
	for _, sub := range subs {
		for _, item := range sub.Items {
			id := item.Product.ID()
			if id == "" {
				continue
			}
			if _, seen := refs[id]; !seen {
				refs[id] = item.Product
			} else if _, ok := item.Product.Expanded(); ok {
				refs[id] = item.Product
			}
		}
	}

	ids := lo.Keys(refs)
	resolved := make([]model.Product, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := uc.products.ResolveProduct(gctx, refs[id])
			if err != nil {
				return fmt.Errorf("resolve product %s: %w", id, err)
			}
			resolved[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]model.Product, len(ids))
	for i, id := range ids {
		out[id] = resolved[i]
	}
	return out, nil
}

// mainPlanIndex picks the main plan subscription: explicit metadata first,
// then a configured plan price, then the first subscription whose first item
// carries no type at all. -1 when none qualifies.
func (uc *billingUC) mainPlanIndex(subs []model.Subscription, products map[string]model.Product) int {
	for i, s := range subs {
		if strings.EqualFold(s.Metadata[model.MetadataType], string(model.CategoryPlan)) {
			return i
		}
	}
	for i, s := range subs {
		if lo.ContainsBy(s.Items, func(it model.SubscriptionItem) bool { return uc.planPriceIDs[it.PriceID] }) {
			return i
		}
	}
	for i, s := range subs {
		if len(s.Items) == 0 {
			continue
		}
		first := s.Items[0]
		if model.ClassifyItem(first, products[first.Product.ID()], false) == model.CategoryOther {
			return i
		}
	}
	return -1
}

func includedSlots(item model.SubscriptionItem, product model.Product) (int, bool) {
	for _, md := range []map[string]string{item.Metadata, product.Metadata} {
		if v, ok := md[model.MetadataIncludedWhatsAppSlots]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}
