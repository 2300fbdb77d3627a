//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func ptr[T any](v T) *T { return &v }

const testPeriodEnd int64 = 1735689600

func testCustomer() model.CustomerContext {
	return model.CustomerContext{CustomerID: "cus_test", IncludedWhatsAppSlots: 1}
}

func testCatalog() *model.Catalog {
	slots := []model.ChannelSlot{{ID: 0, IAProductID: "prod_ia_0", IAPriceID: "price_ia_0"}}
	for i := 1; i < model.NumSlots; i++ {
		slots = append(slots, model.ChannelSlot{
			ID:               i,
			ChannelProductID: fmt.Sprintf("prod_wa_%d", i),
			ChannelPriceID:   fmt.Sprintf("price_wa_%d", i),
			IAProductID:      fmt.Sprintf("prod_ia_%d", i),
			IAPriceID:        fmt.Sprintf("price_ia_%d", i),
		})
	}
	c, err := model.NewCatalog(slots)
	if err != nil {
		panic(err)
	}
	return c
}

// =============================
// Billing gateway
// =============================

type createCall struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

type cancelCall struct {
	ChannelItemID string
	IAItemID      string
}

// MockBilling keeps item statuses in memory so a reload after a mutation sees
// what the mutation did.
type MockBilling struct {
	mu sync.Mutex

	Statuses   map[string]model.BillingStatus
	ActivePlan bool
	PeriodEnd  int64

	Subs           []model.Subscription
	Coupons        map[string]*model.Coupon
	Invoices       []model.Invoice
	PaymentMethods []model.PaymentMethod

	Checked      []string
	Created      []createCall
	Canceled     []cancelCall
	Removed      []string
	PlanChecks   int
	InvoiceLimit int

	CheckFunc  func(ctx context.Context, id string) (model.BillingStatus, error)
	CreateFunc func(ctx context.Context, customerID, priceID string, md map[string]string) (model.CreatedSubscription, error)
	CancelErr  error
	RemoveErr  error
	PlanErr    error
	SubsErr    error
	CouponErr  error

	next int
}

var _ adapter.BillingGateway = (*MockBilling)(nil)

func NewMockBilling() *MockBilling {
	return &MockBilling{
		Statuses:   make(map[string]model.BillingStatus),
		Coupons:    make(map[string]*model.Coupon),
		ActivePlan: true,
		PeriodEnd:  testPeriodEnd,
	}
}

// SetActive marks an item as live.
func (m *MockBilling) SetActive(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[id] = model.BillingStatus{Exists: true, Active: true, CurrentPeriodEnd: ptr(m.PeriodEnd)}
}

func (m *MockBilling) CheckSubscriptionStatus(ctx context.Context, id string) (model.BillingStatus, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checked = append(m.Checked, id)
	if err := ctx.Err(); err != nil {
		return model.BillingStatus{}, err
	}
	return m.Statuses[id], nil
}

func (m *MockBilling) CreateSubscription(ctx context.Context, customerID, priceID string, md map[string]string) (model.CreatedSubscription, error) {
	m.mu.Lock()
	m.Created = append(m.Created, createCall{CustomerID: customerID, PriceID: priceID, Metadata: md})
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, customerID, priceID, md)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	si := fmt.Sprintf("si_new_%d", m.next)
	m.Statuses[si] = model.BillingStatus{Exists: true, Active: true, CurrentPeriodEnd: ptr(m.PeriodEnd)}
	return model.CreatedSubscription{
		SubscriptionID:     fmt.Sprintf("sub_new_%d", m.next),
		SubscriptionItemID: si,
		CurrentPeriodEnd:   m.PeriodEnd,
	}, nil
}

func (m *MockBilling) CancelChannelSubscription(ctx context.Context, channelItemID, iaItemID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Canceled = append(m.Canceled, cancelCall{ChannelItemID: channelItemID, IAItemID: iaItemID})
	if m.CancelErr != nil {
		return 0, m.CancelErr
	}
	for _, id := range []string{channelItemID, iaItemID} {
		if id == "" {
			continue
		}
		st := m.Statuses[id]
		st.CancelAtPeriodEnd = true
		m.Statuses[id] = st
	}
	return m.PeriodEnd, nil
}

func (m *MockBilling) RemoveIASubscription(ctx context.Context, iaItemID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, iaItemID)
	if m.RemoveErr != nil {
		return 0, m.RemoveErr
	}
	delete(m.Statuses, iaItemID)
	return m.PeriodEnd, nil
}

func (m *MockBilling) HasActivePlan(ctx context.Context, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanChecks++
	return m.ActivePlan, m.PlanErr
}

func (m *MockBilling) ListActiveSubscriptions(ctx context.Context, customerID string) ([]model.Subscription, error) {
	return m.Subs, m.SubsErr
}

func (m *MockBilling) GetCoupon(ctx context.Context, couponID string) (*model.Coupon, error) {
	if m.CouponErr != nil {
		return nil, m.CouponErr
	}
	c, ok := m.Coupons[couponID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *MockBilling) ListInvoices(ctx context.Context, customerID string, limit int) ([]model.Invoice, error) {
	m.mu.Lock()
	m.InvoiceLimit = limit
	m.mu.Unlock()
	return m.Invoices, nil
}

func (m *MockBilling) ListPaymentMethods(ctx context.Context, customerID string) ([]model.PaymentMethod, error) {
	return m.PaymentMethods, nil
}

// =============================
// Product resolver
// =============================

type MockProducts struct {
	mu       sync.Mutex
	Products map[string]model.Product
	Calls    int
}

var _ adapter.ProductResolver = (*MockProducts)(nil)

func NewMockProducts(ps ...model.Product) *MockProducts {
	m := &MockProducts{Products: make(map[string]model.Product)}
	for _, p := range ps {
		m.Products[p.ID] = p
	}
	return m
}

func (m *MockProducts) ResolveProduct(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	if p, ok := ref.Expanded(); ok {
		return p, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	p, ok := m.Products[ref.ID()]
	if !ok {
		return model.Product{ID: ref.ID()}, nil
	}
	return p, nil
}

// =============================
// Channel store
// =============================

type MockStore struct {
	mu      sync.Mutex
	Records map[int]model.ChannelRecord

	Upserts []model.ChannelRecord
	Writes  []string

	ListErr       error
	UpsertErr     error
	StatusErr     error
	IncludeErr    error
	RemoveIAErr   error
	ReactivateErr error
}

var _ adapter.ChannelStore = (*MockStore)(nil)

func NewMockStore(recs ...model.ChannelRecord) *MockStore {
	m := &MockStore{Records: make(map[int]model.ChannelRecord)}
	for _, r := range recs {
		m.Records[r.ID] = r
	}
	return m
}

func (m *MockStore) ListChannels(ctx context.Context, customerID string) ([]model.ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]model.ChannelRecord, 0, len(m.Records))
	for i := 0; i < model.NumSlots; i++ {
		if r, ok := m.Records[i]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStore) UpsertChannel(ctx context.Context, customerID string, rec model.ChannelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, "upsert")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = model.FormatRecordDate(testPeriodEnd - 86400)
	}
	m.Upserts = append(m.Upserts, rec)
	m.Records[rec.ID] = rec
	return nil
}

func (m *MockStore) UpdateStatus(ctx context.Context, customerID string, id int, status model.AssinaturaStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, "status")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.StatusErr != nil {
		return m.StatusErr
	}
	r, ok := m.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.AssinaturaStatus = status
	m.Records[id] = r
	return nil
}

func (m *MockStore) IncludeIA(ctx context.Context, customerID string, id int, link model.IALinkage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, "include_ia")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.IncludeErr != nil {
		return m.IncludeErr
	}
	r, ok := m.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Records[id] = r.ApplyIA(link)
	return nil
}

func (m *MockStore) RemoveIA(ctx context.Context, customerID string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, "remove_ia")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.RemoveIAErr != nil {
		return m.RemoveIAErr
	}
	r, ok := m.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Records[id] = r.ApplyIA(model.IALinkage{})
	return nil
}

func (m *MockStore) ReactivateChannel(ctx context.Context, customerID string, id int, link model.ChannelLinkage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = append(m.Writes, "reactivate")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ReactivateErr != nil {
		return m.ReactivateErr
	}
	r, ok := m.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r = r.ApplyChannel(link)
	r.AssinaturaStatus = model.AssinaturaContratado
	m.Records[id] = r
	return nil
}

// =============================
// Journal
// =============================

type MockJournal struct {
	mu      sync.Mutex
	Entries []*repository.JournalEntry
}

var _ repository.MutationJournal = (*MockJournal)(nil)

func (m *MockJournal) Record(ctx context.Context, e *repository.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MockJournal) ListRecent(ctx context.Context, customerID string, limit int) ([]*repository.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries, nil
}

// =============================
// Record builders
// =============================

func contractedRecord(id int, channelSI, iaSI string) model.ChannelRecord {
	exp := model.FormatRecordDate(testPeriodEnd)
	r := model.ChannelRecord{
		ID:                      id,
		Titulo:                  fmt.Sprintf("Recepção %d", id),
		InfozapStripeSI:         channelSI,
		InfozapStripePrice:      fmt.Sprintf("price_wa_%d", id),
		InfozapStripeExpiration: exp,
		AssinaturaStatus:        model.AssinaturaContratado,
		CreatedAt:               "2024-06-01 10:00:00",
	}
	if iaSI != "" {
		r = r.ApplyIA(model.IALinkage{SubscriptionItemID: iaSI, PriceID: fmt.Sprintf("price_ia_%d", id), Expiration: exp})
	}
	return r
}
