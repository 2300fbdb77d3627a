package model

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MetadataType is the metadata key items and products are classified by.
const MetadataType = "type"

// MetadataIncludedWhatsAppSlots is read from the plan product or price.
const MetadataIncludedWhatsAppSlots = "included_whatsapp_slots"

// SummaryCategories is the display order of the summary.
var SummaryCategories = []BillingCategory{
	CategoryPlan, CategoryWhatsApp, CategoryIA, CategoryBirdID, CategoryStorage, CategoryOther,
}

// ClassifyItem picks the category of a line item: item metadata first, then
// product metadata, then the first-item-is-the-plan fallback.
func ClassifyItem(item SubscriptionItem, product Product, firstOfPlan bool) BillingCategory {
	if c, ok := ParseCategory(strings.ToLower(item.Metadata[MetadataType])); ok {
		return c
	}
	if c, ok := ParseCategory(strings.ToLower(product.Metadata[MetadataType])); ok {
		return c
	}
	if firstOfPlan {
		return CategoryPlan
	}
	return CategoryOther
}

// ItemTotal is the monthly amount of one line in cents.
func ItemTotal(item SubscriptionItem) int64 {
	q := item.Quantity
	if q <= 0 {
		q = 1
	}
	return item.UnitAmount * q
}

// CouponDiscount returns the discount in cents that c grants on planTotal.
// Percentages round half-up to the cent; the discount never exceeds planTotal.
func CouponDiscount(planTotal int64, c *Coupon) int64 {
	if c == nil || planTotal <= 0 {
		return 0
	}
	var d int64
	switch {
	case c.PercentOff > 0:
		d = decimal.NewFromInt(planTotal).
			Mul(decimal.NewFromFloat(c.PercentOff)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case c.AmountOff > 0:
		d = c.AmountOff
	}
	if d > planTotal {
		d = planTotal
	}
	return d
}

// MarkBillable flags active paid channels beyond the plan's included slots.
// Covered channels are the oldest ones by record creation time. views is not
// modified; the result keeps its order.
func MarkBillable(views []ChannelView, included int) []ChannelView {
	out := make([]ChannelView, len(views))
	copy(out, views)

	active := lo.Filter(out, func(v ChannelView, _ int) bool {
		return v.ID != FreeSlotID && v.Status == ChannelStatusActive
	})
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i].CreatedAt, active[j].CreatedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return active[i].ID < active[j].ID
	})

	billable := make(map[int]bool, len(active))
	for i, v := range active {
		billable[v.ID] = i >= included
	}
	for i := range out {
		out[i].IsBillable = billable[out[i].ID]
	}
	return out
}

// CategoryLine is one row of the plan summary.
type CategoryLine struct {
	Category    BillingCategory `json:"category"`
	AmountCents int64           `json:"amount_cents"`
	Display     string          `json:"display"`
}

// BillingSummary is the monthly cost breakdown shown on the plan page.
type BillingSummary struct {
	Lines                 []CategoryLine `json:"lines"`
	SubtotalCents         int64          `json:"subtotal_cents"`
	DiscountCents         int64          `json:"discount_cents"`
	PlanAfterDiscount     int64          `json:"plan_after_discount_cents"`
	TotalCents            int64          `json:"total_cents"`
	TotalDisplay          string         `json:"total_display"`
	Coupon                *Coupon        `json:"coupon,omitempty"`
	IncludedWhatsAppSlots int            `json:"included_whatsapp_slots"`
	Channels              []ChannelView  `json:"channels,omitempty"`
}

// BuildSummary aggregates per-category totals and applies the coupon to the
// plan category only.
func BuildSummary(totals map[BillingCategory]int64, coupon *Coupon) BillingSummary {
	s := BillingSummary{Coupon: coupon}
	for _, c := range SummaryCategories {
		amt := totals[c]
		s.SubtotalCents += amt
		if amt == 0 && c != CategoryPlan {
			continue
		}
		s.Lines = append(s.Lines, CategoryLine{Category: c, AmountCents: amt, Display: FormatBRL(amt)})
	}
	plan := totals[CategoryPlan]
	s.DiscountCents = CouponDiscount(plan, coupon)
	s.PlanAfterDiscount = plan - s.DiscountCents
	s.TotalCents = s.SubtotalCents - s.DiscountCents
	s.TotalDisplay = FormatBRL(s.TotalCents)
	return s
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	str := decimal.New(cents, -2).StringFixed(2)
	intPart, frac, _ := strings.Cut(str, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
