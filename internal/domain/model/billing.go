package model

// BillingStatus is one oracle answer for a subscription or subscription item.
// It is never persisted.
type BillingStatus struct {
	Exists            bool   `json:"exists"`
	Active            bool   `json:"active"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *int64 `json:"current_period_end"`
	CancelAt          *int64 `json:"cancel_at"`
}

// EffectiveCancelAt is the explicit cancellation time, or the period end when
// the subscription is set to cancel at period end.
func (b BillingStatus) EffectiveCancelAt() *int64 {
	if b.CancelAt != nil {
		return b.CancelAt
	}
	if b.CancelAtPeriodEnd {
		return b.CurrentPeriodEnd
	}
	return nil
}

// CreatedSubscription is returned by the billing platform after creating an
// individual subscription.
type CreatedSubscription struct {
	SubscriptionID     string
	SubscriptionItemID string
	CurrentPeriodEnd   int64
}

// BillingCategory classifies a line item in the plan summary.
type BillingCategory string

const (
	CategoryPlan     BillingCategory = "plan"
	CategoryWhatsApp BillingCategory = "whatsapp"
	CategoryIA       BillingCategory = "ia"
	CategoryBirdID   BillingCategory = "birdid"
	CategoryStorage  BillingCategory = "storage"
	CategoryOther    BillingCategory = "other"
)

// ParseCategory maps a metadata "type" value to a category. ok is false for
// unknown or empty values.
func ParseCategory(s string) (BillingCategory, bool) {
	switch BillingCategory(s) {
	case CategoryPlan, CategoryWhatsApp, CategoryIA, CategoryBirdID, CategoryStorage:
		return BillingCategory(s), true
	}
	return "", false
}

// Product is a billing-platform product with the metadata we classify on.
type Product struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// ProductRef is either a bare product id or an expanded product.
// Adapters resolve it once so use cases never inspect the payload shape.
type ProductRef struct {
	id       string
	expanded *Product
}

func ProductRefID(id string) ProductRef { return ProductRef{id: id} }

func ProductRefExpanded(p Product) ProductRef { return ProductRef{id: p.ID, expanded: &p} }

func (r ProductRef) ID() string { return r.id }

// Expanded returns the product when the platform sent it inline.
func (r ProductRef) Expanded() (Product, bool) {
	if r.expanded == nil {
		return Product{}, false
	}
	return *r.expanded, true
}

// SubscriptionItem is one line of a subscription.
type SubscriptionItem struct {
	ID         string
	PriceID    string
	Product    ProductRef
	UnitAmount int64 // cents
	Quantity   int64
	Metadata   map[string]string
}

// Subscription is an active billing-platform subscription with its items.
type Subscription struct {
	ID                string
	Status            string
	CancelAtPeriodEnd bool
	Metadata          map[string]string
	Items             []SubscriptionItem
}

// Coupon is a discount on the plan category. Exactly one of PercentOff or
// AmountOff is set.
type Coupon struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	PercentOff float64 `json:"percent_off,omitempty"`
	AmountOff  int64   `json:"amount_off,omitempty"` // cents
	Currency   string  `json:"currency,omitempty"`
	Duration   string  `json:"duration"`
	Valid      bool    `json:"valid"`
}

type Invoice struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	Status           string `json:"status"`
	AmountDue        int64  `json:"amount_due"`
	AmountPaid       int64  `json:"amount_paid"`
	Currency         string `json:"currency"`
	Created          int64  `json:"created"`
	HostedInvoiceURL string `json:"hosted_invoice_url,omitempty"`
	InvoicePDF       string `json:"invoice_pdf,omitempty"`
}

type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}
