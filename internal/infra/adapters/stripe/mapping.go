package stripe

import (
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"

	"meu-plano/internal/domain/model"
)

func isLive(s stripelib.SubscriptionStatus) bool {
	return s == stripelib.SubscriptionStatusActive || s == stripelib.SubscriptionStatusTrialing
}

// billingStatus builds an oracle answer. periodEnd comes from the item since
// subscriptions no longer carry it.
func billingStatus(sub *stripelib.Subscription, periodEnd int64) model.BillingStatus {
	st := model.BillingStatus{
		Exists:            true,
		Active:            isLive(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if periodEnd > 0 {
		pe := periodEnd
		st.CurrentPeriodEnd = &pe
	}
	if sub.CancelAt > 0 {
		at := sub.CancelAt
		st.CancelAt = &at
	}
	return st
}

func firstItem(sub *stripelib.Subscription) *stripelib.SubscriptionItem {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func itemCount(sub *stripelib.Subscription) int {
	if sub == nil || sub.Items == nil {
		return 0
	}
	return len(sub.Items.Data)
}

// productRef resolves the id-or-object payload once. stripe-go decodes a bare
// id into a Product with only ID set.
func productRef(p *stripelib.Product) model.ProductRef {
	if p == nil {
		return model.ProductRefID("")
	}
	if p.Object == "" {
		return model.ProductRefID(p.ID)
	}
	return model.ProductRefExpanded(mapProduct(p))
}

func mapProduct(p *stripelib.Product) model.Product {
	return model.Product{ID: p.ID, Name: p.Name, Metadata: p.Metadata}
}

// mapItem merges price metadata under item metadata; the item wins.
func mapItem(it *stripelib.SubscriptionItem) model.SubscriptionItem {
	out := model.SubscriptionItem{
		ID:       it.ID,
		Quantity: it.Quantity,
		Metadata: make(map[string]string),
	}
	if it.Price != nil {
		out.PriceID = it.Price.ID
		out.UnitAmount = it.Price.UnitAmount
		out.Product = productRef(it.Price.Product)
		for k, v := range it.Price.Metadata {
			out.Metadata[k] = v
		}
	}
	for k, v := range it.Metadata {
		out.Metadata[k] = v
	}
	return out
}

func mapSubscription(sub *stripelib.Subscription) model.Subscription {
	out := model.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Items != nil {
		for _, it := range sub.Items.Data {
			out.Items = append(out.Items, mapItem(it))
		}
	}
	return out
}

func mapCoupon(c *stripelib.Coupon) *model.Coupon {
	return &model.Coupon{
		ID:         c.ID,
		Name:       c.Name,
		PercentOff: c.PercentOff,
		AmountOff:  c.AmountOff,
		Currency:   string(c.Currency),
		Duration:   string(c.Duration),
		Valid:      c.Valid,
	}
}

func mapInvoice(in *stripelib.Invoice) model.Invoice {
	return model.Invoice{
		ID:               in.ID,
		Number:           in.Number,
		Status:           string(in.Status),
		AmountDue:        in.AmountDue,
		AmountPaid:       in.AmountPaid,
		Currency:         string(in.Currency),
		Created:          in.Created,
		HostedInvoiceURL: in.HostedInvoiceURL,
		InvoicePDF:       in.InvoicePDF,
	}
}

func mapPaymentMethod(pm *stripelib.PaymentMethod, defaultID string) model.PaymentMethod {
	out := model.PaymentMethod{ID: pm.ID, IsDefault: pm.ID == defaultID}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = pm.Card.ExpMonth
		out.ExpYear = pm.Card.ExpYear
	}
	return out
}

// subscriptionType is the "type" a subscription declares, on itself or on
// its first item or price.
func subscriptionType(sub *stripelib.Subscription) string {
	if t := sub.Metadata[model.MetadataType]; t != "" {
		return strings.ToLower(t)
	}
	if it := firstItem(sub); it != nil {
		if t := it.Metadata[model.MetadataType]; t != "" {
			return strings.ToLower(t)
		}
		if it.Price != nil {
			return strings.ToLower(it.Price.Metadata[model.MetadataType])
		}
	}
	return ""
}
