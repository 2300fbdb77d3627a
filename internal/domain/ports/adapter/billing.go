package adapter

import (
	"context"

	"meu-plano/internal/domain/model"
)

// BillingOracle answers "is this subscription (item) live" questions.
type BillingOracle interface {
	// CheckSubscriptionStatus accepts a subscription id or a subscription item id.
	// A missing object is not an error: it yields Exists=false.
	CheckSubscriptionStatus(ctx context.Context, id string) (model.BillingStatus, error)
}

// BillingGateway is the hex port for the payment platform.
type BillingGateway interface {
	BillingOracle

	// CreateSubscription creates an individual single-item subscription.
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (model.CreatedSubscription, error)
	// CancelChannelSubscription cancels the channel item's subscription, and the
	// IA one when iaItemID is not empty, at period end. Returns the cancel time.
	CancelChannelSubscription(ctx context.Context, channelItemID, iaItemID string) (cancelAt int64, err error)
	// RemoveIASubscription deletes the IA item and returns until when it was paid for.
	RemoveIASubscription(ctx context.Context, iaItemID string) (willBeActiveUntil int64, err error)
	// HasActivePlan reports whether the customer has a live main plan.
	HasActivePlan(ctx context.Context, customerID string) (bool, error)

	ListActiveSubscriptions(ctx context.Context, customerID string) ([]model.Subscription, error)
	GetCoupon(ctx context.Context, couponID string) (*model.Coupon, error)
	ListInvoices(ctx context.Context, customerID string, limit int) ([]model.Invoice, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]model.PaymentMethod, error)
}

// ProductResolver turns a ProductRef into a full product.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, ref model.ProductRef) (model.Product, error)
}
