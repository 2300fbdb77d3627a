//go:build !integration

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain/model"
	"meu-plano/internal/usecase"
)

type mockChannels struct {
	LoadFunc       func(ctx context.Context, c model.CustomerContext) ([]model.ChannelView, error)
	AddFunc        func(ctx context.Context, c model.CustomerContext, id int, titulo string, withIA bool) (*usecase.MutationResult, error)
	RemoveFunc     func(ctx context.Context, c model.CustomerContext, id int) (*usecase.MutationResult, error)
	ReactivateFunc func(ctx context.Context, c model.CustomerContext, id int, withIA bool) (*usecase.MutationResult, error)
	ToggleFunc     func(ctx context.Context, c model.CustomerContext, id int) (*usecase.MutationResult, error)
}

var _ usecase.ChannelUseCase = (*mockChannels)(nil)

func (m *mockChannels) Load(ctx context.Context, c model.CustomerContext) ([]model.ChannelView, error) {
	return m.LoadFunc(ctx, c)
}
func (m *mockChannels) AddChannel(ctx context.Context, c model.CustomerContext, id int, titulo string, withIA bool) (*usecase.MutationResult, error) {
	return m.AddFunc(ctx, c, id, titulo, withIA)
}
func (m *mockChannels) RemoveChannel(ctx context.Context, c model.CustomerContext, id int) (*usecase.MutationResult, error) {
	return m.RemoveFunc(ctx, c, id)
}
func (m *mockChannels) ReactivateChannel(ctx context.Context, c model.CustomerContext, id int, withIA bool) (*usecase.MutationResult, error) {
	return m.ReactivateFunc(ctx, c, id, withIA)
}
func (m *mockChannels) ToggleIA(ctx context.Context, c model.CustomerContext, id int) (*usecase.MutationResult, error) {
	return m.ToggleFunc(ctx, c, id)
}

type mockBilling struct {
	SummaryFunc  func(ctx context.Context, c model.CustomerContext, coupon string) (*model.BillingSummary, error)
	InvoicesFunc func(ctx context.Context, c model.CustomerContext, limit int) ([]model.Invoice, error)
	MethodsFunc  func(ctx context.Context, c model.CustomerContext) ([]model.PaymentMethod, error)
	CouponFunc   func(ctx context.Context, id string) (*model.Coupon, error)
}

var _ usecase.BillingUseCase = (*mockBilling)(nil)

func (m *mockBilling) Summary(ctx context.Context, c model.CustomerContext, coupon string) (*model.BillingSummary, error) {
	return m.SummaryFunc(ctx, c, coupon)
}
func (m *mockBilling) ListInvoices(ctx context.Context, c model.CustomerContext, limit int) ([]model.Invoice, error) {
	return m.InvoicesFunc(ctx, c, limit)
}
func (m *mockBilling) ListPaymentMethods(ctx context.Context, c model.CustomerContext) ([]model.PaymentMethod, error) {
	return m.MethodsFunc(ctx, c)
}
func (m *mockBilling) ValidateCoupon(ctx context.Context, id string) (*model.Coupon, error) {
	return m.CouponFunc(ctx, id)
}

type mockLimiter struct {
	allowed int
	err     error
	calls   int
	lastKey string
}

func (m *mockLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	m.calls++
	m.lastKey = key
	if m.err != nil {
		return false, m.err
	}
	return m.calls <= m.allowed, nil
}

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

var testCustomer = model.CustomerContext{CustomerID: "cus_test", IncludedWhatsAppSlots: 1}
