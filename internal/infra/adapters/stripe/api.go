package stripe

import (
	"net/http"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/paymentmethod"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/subscriptionitem"
)

// api is the part of stripe-go the gateway calls. Tests replace the fields.
type api struct {
	getItem            func(id string, params *stripelib.SubscriptionItemParams) (*stripelib.SubscriptionItem, error)
	getSubscription    func(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	newSubscription    func(params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	updateSubscription func(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	cancelSubscription func(id string, params *stripelib.SubscriptionCancelParams) (*stripelib.Subscription, error)
	listSubscriptions  func(params *stripelib.SubscriptionListParams) ([]*stripelib.Subscription, error)
	getProduct         func(id string, params *stripelib.ProductParams) (*stripelib.Product, error)
	getCoupon          func(id string, params *stripelib.CouponParams) (*stripelib.Coupon, error)
	getCustomer        func(id string, params *stripelib.CustomerParams) (*stripelib.Customer, error)
	listInvoices       func(params *stripelib.InvoiceListParams, max int) ([]*stripelib.Invoice, error)
	listPaymentMethods func(params *stripelib.PaymentMethodListParams) ([]*stripelib.PaymentMethod, error)
}

// configure sets the process-wide key and backend. The core never retries,
// so the SDK's own network retries are switched off.
func configure(secretKey string, timeout time.Duration) {
	stripelib.Key = secretKey
	backend := stripelib.GetBackendWithConfig(stripelib.APIBackend, &stripelib.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripelib.Int64(0),
	})
	stripelib.SetBackend(stripelib.APIBackend, backend)
}

func liveAPI() api {
	return api{
		getItem:            subscriptionitem.Get,
		getSubscription:    subscription.Get,
		newSubscription:    subscription.New,
		updateSubscription: subscription.Update,
		cancelSubscription: subscription.Cancel,
		listSubscriptions: func(p *stripelib.SubscriptionListParams) ([]*stripelib.Subscription, error) {
			it := subscription.List(p)
			var out []*stripelib.Subscription
			for it.Next() {
				out = append(out, it.Subscription())
			}
			return out, it.Err()
		},
		getProduct:  product.Get,
		getCoupon:   coupon.Get,
		getCustomer: customer.Get,
		listInvoices: func(p *stripelib.InvoiceListParams, max int) ([]*stripelib.Invoice, error) {
			it := invoice.List(p)
			var out []*stripelib.Invoice
			for len(out) < max && it.Next() {
				out = append(out, it.Invoice())
			}
			return out, it.Err()
		},
		listPaymentMethods: func(p *stripelib.PaymentMethodListParams) ([]*stripelib.PaymentMethod, error) {
			it := paymentmethod.List(p)
			var out []*stripelib.PaymentMethod
			for it.Next() {
				out = append(out, it.PaymentMethod())
			}
			return out, it.Err()
		},
	}
}
