// File: internal/usecase/channel_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/model"
	"meu-plano/internal/domain/ports/adapter"
	"meu-plano/internal/domain/ports/repository"
	"meu-plano/internal/infra/logging"
	"meu-plano/internal/infra/metrics"
)

// Compile-time check
var _ ChannelUseCase = (*channelUC)(nil)

const (
	OpAddChannel        = "add_channel"
	OpRemoveChannel     = "remove_channel"
	OpReactivateChannel = "reactivate_channel"
	OpToggleIA          = "toggle_ia"
)

// User-facing precondition messages.
const (
	MsgNoActivePlan   = "nenhum plano ativo"
	MsgSlot0NeedsIA   = "o canal 0 exige IA"
	MsgUnknownChannel = "canal inexistente"
	MsgIAAlreadyOn    = "IA já está ativa neste canal"
)

// ChannelUseCase reconciles channel slots against the record store and the
// billing platform, and runs the channel mutations.
type ChannelUseCase interface {
	// Load returns exactly one view per catalog slot, in slot order.
	Load(ctx context.Context, customer model.CustomerContext) ([]model.ChannelView, error)

	AddChannel(ctx context.Context, customer model.CustomerContext, slotID int, titulo string, withIA bool) (*MutationResult, error)
	RemoveChannel(ctx context.Context, customer model.CustomerContext, slotID int) (*MutationResult, error)
	ReactivateChannel(ctx context.Context, customer model.CustomerContext, slotID int, withIA bool) (*MutationResult, error)
	ToggleIA(ctx context.Context, customer model.CustomerContext, slotID int) (*MutationResult, error)
}

// MutationResult carries the reconciliation reloaded after a mutation.
type MutationResult struct {
	Channels []model.ChannelView `json:"channels"`
	// CancelAt is set by RemoveChannel: billing stays active until then.
	CancelAt *int64 `json:"cancel_at,omitempty"`
	// ActiveUntil is set when IA is switched off.
	ActiveUntil *int64 `json:"active_until,omitempty"`
}

type channelUC struct {
	catalog *model.Catalog
	billing adapter.BillingGateway
	store   adapter.ChannelStore
	journal repository.MutationJournal // optional
	log     *zerolog.Logger
}

// NewChannelUseCase wires the reconciler. journal may be nil.
func NewChannelUseCase(
	catalog *model.Catalog,
	billing adapter.BillingGateway,
	store adapter.ChannelStore,
	journal repository.MutationJournal,
	logger *zerolog.Logger,
) *channelUC {
	l := logger.With().Str("component", "ChannelUseCase").Logger()
	return &channelUC{catalog: catalog, billing: billing, store: store, journal: journal, log: &l}
}

// -----------------------------
// Reconciliation
// -----------------------------

// snapshot is one reconciliation pass with the records it was derived from.
type snapshot struct {
	views   []model.ChannelView
	records map[int]*model.ChannelRecord
}

func (s *snapshot) slot(id int) (model.ChannelView, *model.ChannelRecord) {
	return s.views[id], s.records[id]
}

func (uc *channelUC) Load(ctx context.Context, customer model.CustomerContext) ([]model.ChannelView, error) {
	snap, err := uc.reconcile(ctx, customer)
	if err != nil {
		return nil, err
	}
	return snap.views, nil
}

func (uc *channelUC) reconcile(ctx context.Context, customer model.CustomerContext) (*snapshot, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.reconcile")()
	start := time.Now()

	snap, err := uc.doReconcile(ctx, customer)
	metrics.ObserveReconcile(time.Since(start), err == nil)
	if err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Msg("channel reconciliation failed")
		return nil, err
	}
	return snap, nil
}

func (uc *channelUC) doReconcile(ctx context.Context, customer model.CustomerContext) (*snapshot, error) {
	list, err := uc.store.ListChannels(ctx, customer.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	records := make(map[int]*model.ChannelRecord, len(list))
	for i := range list {
		rec := list[i]
		if _, dup := records[rec.ID]; dup {
			uc.log.Warn().Int("channel_id", rec.ID).Msg("duplicate channel record, keeping the first")
			continue
		}
		records[rec.ID] = &rec
	}

	slots := uc.catalog.Slots()
	channel := make([]*model.BillingStatus, len(slots))
	ia := make([]*model.BillingStatus, len(slots))

	// At most two lookups per slot, all in flight together.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2 * model.NumSlots)
	for i, slot := range slots {
		i, slot := i, slot
		chID, iaID := model.LookupIDs(slot, records[slot.ID])
		if chID != "" {
			g.Go(func() error {
				st, err := uc.billing.CheckSubscriptionStatus(gctx, chID)
				if err != nil {
					return fmt.Errorf("channel %d billing status: %w", slot.ID, err)
				}
				channel[i] = &st
				return nil
			})
		}
		if iaID != "" {
			g.Go(func() error {
				st, err := uc.billing.CheckSubscriptionStatus(gctx, iaID)
				if err != nil {
					return fmt.Errorf("channel %d IA billing status: %w", slot.ID, err)
				}
				ia[i] = &st
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]model.ChannelView, len(slots))
	for i, slot := range slots {
		views[i] = model.DeriveView(slot, records[slot.ID], channel[i], ia[i])
	}
	return &snapshot{views: views, records: records}, nil
}

// -----------------------------
// Mutations
// -----------------------------

func (uc *channelUC) AddChannel(ctx context.Context, customer model.CustomerContext, slotID int, titulo string, withIA bool) (*MutationResult, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.AddChannel")()

	slot, err := uc.slot(slotID)
	if err != nil {
		return nil, uc.reject(OpAddChannel, err)
	}
	if slot.IsFree() && !withIA {
		return nil, uc.reject(OpAddChannel, domain.NewUserError(domain.KindInvalid, MsgSlot0NeedsIA, domain.ErrInvalidArgument))
	}
	if !slot.IsFree() {
		if err := uc.requireActivePlan(ctx, customer); err != nil {
			return nil, uc.reject(OpAddChannel, err)
		}
	}

	snap, err := uc.reconcile(ctx, customer)
	if err != nil {
		return nil, uc.fail(OpAddChannel, err)
	}
	view, rec := snap.slot(slot.ID)
	status, err := uc.transition(slot, view, model.TransitionContract)
	if err != nil {
		return nil, uc.reject(OpAddChannel, err)
	}
	if slot.IsFree() && view.IA {
		return nil, uc.reject(OpAddChannel, domain.NewUserError(domain.KindConflict, MsgIAAlreadyOn, nil))
	}

	if titulo == "" {
		titulo = view.Titulo
	}
	m := uc.newMutation(customer, OpAddChannel, slot.ID)

	if slot.IsFree() {
		if err := uc.attachIA(ctx, m, customer, slot, rec, titulo); err != nil {
			return nil, err
		}
		return uc.finish(ctx, m, customer, &MutationResult{})
	}

	next := model.ChannelRecord{ID: slot.ID, Titulo: titulo, AssinaturaStatus: status}
	if rec != nil {
		next.CreatedAt = rec.CreatedAt
	}

	var created model.CreatedSubscription
	err = m.step(ctx, "create_channel_billing", func(ctx context.Context) (err error) {
		created, err = uc.billing.CreateSubscription(ctx, customer.CustomerID, slot.ChannelPriceID, billingMetadata(customer, slot.ID, model.CategoryWhatsApp))
		return err
	})
	if err != nil {
		return nil, err
	}
	next = next.ApplyChannel(model.ChannelLinkage{
		SubscriptionItemID: created.SubscriptionItemID,
		PriceID:            slot.ChannelPriceID,
		Expiration:         model.FormatRecordDate(created.CurrentPeriodEnd),
	})

	if withIA {
		err = m.step(ctx, "create_ia_billing", func(ctx context.Context) (err error) {
			created, err = uc.billing.CreateSubscription(ctx, customer.CustomerID, slot.IAPriceID, billingMetadata(customer, slot.ID, model.CategoryIA))
			return err
		})
		if err != nil {
			return nil, err
		}
		next = next.ApplyIA(iaLinkage(slot, created))
	}

	err = m.step(ctx, "upsert_record", func(ctx context.Context) error {
		return uc.store.UpsertChannel(ctx, customer.CustomerID, next)
	})
	if err != nil {
		return nil, err
	}
	return uc.finish(ctx, m, customer, &MutationResult{})
}

func (uc *channelUC) RemoveChannel(ctx context.Context, customer model.CustomerContext, slotID int) (*MutationResult, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.RemoveChannel")()

	slot, err := uc.slot(slotID)
	if err != nil {
		return nil, uc.reject(OpRemoveChannel, err)
	}
	snap, err := uc.reconcile(ctx, customer)
	if err != nil {
		return nil, uc.fail(OpRemoveChannel, err)
	}
	view, rec := snap.slot(slot.ID)
	status, err := uc.transition(slot, view, model.TransitionCancel)
	if err != nil {
		return nil, uc.reject(OpRemoveChannel, err)
	}

	m := uc.newMutation(customer, OpRemoveChannel, slot.ID)
	res := &MutationResult{}

	channelItem := rec.InfozapStripeSI
	var iaItem string
	if view.IAActiveInStripe {
		iaItem = rec.IAStripeSI
	}
	if channelItem != "" || iaItem != "" {
		err = m.step(ctx, "cancel_billing", func(ctx context.Context) error {
			cancelAt, err := uc.billing.CancelChannelSubscription(ctx, channelItem, iaItem)
			if err != nil {
				return err
			}
			if cancelAt > 0 {
				res.CancelAt = &cancelAt
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = m.step(ctx, "update_status", func(ctx context.Context) error {
		return uc.store.UpdateStatus(ctx, customer.CustomerID, slot.ID, status)
	})
	if err != nil {
		return nil, err
	}
	return uc.finish(ctx, m, customer, res)
}

func (uc *channelUC) ReactivateChannel(ctx context.Context, customer model.CustomerContext, slotID int, withIA bool) (*MutationResult, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.ReactivateChannel")()

	slot, err := uc.slot(slotID)
	if err != nil {
		return nil, uc.reject(OpReactivateChannel, err)
	}
	if !slot.IsFree() {
		if err := uc.requireActivePlan(ctx, customer); err != nil {
			return nil, uc.reject(OpReactivateChannel, err)
		}
	}
	snap, err := uc.reconcile(ctx, customer)
	if err != nil {
		return nil, uc.fail(OpReactivateChannel, err)
	}
	view, _ := snap.slot(slot.ID)
	if _, err := uc.transition(slot, view, model.TransitionReactivate); err != nil {
		return nil, uc.reject(OpReactivateChannel, err)
	}

	m := uc.newMutation(customer, OpReactivateChannel, slot.ID)

	// Always fresh subscriptions: the cancelled ones may have lapsed.
	var created model.CreatedSubscription
	err = m.step(ctx, "create_channel_billing", func(ctx context.Context) (err error) {
		created, err = uc.billing.CreateSubscription(ctx, customer.CustomerID, slot.ChannelPriceID, billingMetadata(customer, slot.ID, model.CategoryWhatsApp))
		return err
	})
	if err != nil {
		return nil, err
	}
	link := model.ChannelLinkage{
		SubscriptionItemID: created.SubscriptionItemID,
		PriceID:            slot.ChannelPriceID,
		Expiration:         model.FormatRecordDate(created.CurrentPeriodEnd),
	}
	err = m.step(ctx, "reactivate_record", func(ctx context.Context) error {
		return uc.store.ReactivateChannel(ctx, customer.CustomerID, slot.ID, link)
	})
	if err != nil {
		return nil, err
	}

	if withIA {
		err = m.step(ctx, "create_ia_billing", func(ctx context.Context) (err error) {
			created, err = uc.billing.CreateSubscription(ctx, customer.CustomerID, slot.IAPriceID, billingMetadata(customer, slot.ID, model.CategoryIA))
			return err
		})
		if err != nil {
			return nil, err
		}
		err = m.step(ctx, "include_ia", func(ctx context.Context) error {
			return uc.store.IncludeIA(ctx, customer.CustomerID, slot.ID, iaLinkage(slot, created))
		})
		if err != nil {
			return nil, err
		}
	}
	return uc.finish(ctx, m, customer, &MutationResult{})
}

func (uc *channelUC) ToggleIA(ctx context.Context, customer model.CustomerContext, slotID int) (*MutationResult, error) {
	defer logging.TraceDuration(uc.log, "ChannelUC.ToggleIA")()

	slot, err := uc.slot(slotID)
	if err != nil {
		return nil, uc.reject(OpToggleIA, err)
	}
	snap, err := uc.reconcile(ctx, customer)
	if err != nil {
		return nil, uc.fail(OpToggleIA, err)
	}
	view, rec := snap.slot(slot.ID)
	if _, err := uc.transition(slot, view, model.TransitionToggleIA); err != nil {
		return nil, uc.reject(OpToggleIA, err)
	}

	m := uc.newMutation(customer, OpToggleIA, slot.ID)

	if !view.IA {
		if err := uc.attachIA(ctx, m, customer, slot, rec, view.Titulo); err != nil {
			return nil, err
		}
		return uc.finish(ctx, m, customer, &MutationResult{})
	}

	res := &MutationResult{}
	err = m.step(ctx, "remove_ia_billing", func(ctx context.Context) error {
		until, err := uc.billing.RemoveIASubscription(ctx, rec.IAStripeSI)
		if err != nil {
			return err
		}
		if until > 0 {
			res.ActiveUntil = &until
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = m.step(ctx, "remove_ia_record", func(ctx context.Context) error {
		return uc.store.RemoveIA(ctx, customer.CustomerID, slot.ID)
	})
	if err != nil {
		return nil, err
	}
	return uc.finish(ctx, m, customer, res)
}

// attachIA creates IA billing and writes its linkage. A slot without a
// record gets one created with the linkage in the same write.
func (uc *channelUC) attachIA(ctx context.Context, m *mutation, customer model.CustomerContext, slot model.ChannelSlot, rec *model.ChannelRecord, titulo string) error {
	var created model.CreatedSubscription
	err := m.step(ctx, "create_ia_billing", func(ctx context.Context) (err error) {
		created, err = uc.billing.CreateSubscription(ctx, customer.CustomerID, slot.IAPriceID, billingMetadata(customer, slot.ID, model.CategoryIA))
		return err
	})
	if err != nil {
		return err
	}
	link := iaLinkage(slot, created)

	if rec == nil {
		next := model.ChannelRecord{ID: slot.ID, Titulo: titulo, AssinaturaStatus: model.AssinaturaContratado}.ApplyIA(link)
		return m.step(ctx, "upsert_record", func(ctx context.Context) error {
			return uc.store.UpsertChannel(ctx, customer.CustomerID, next)
		})
	}
	return m.step(ctx, "include_ia", func(ctx context.Context) error {
		return uc.store.IncludeIA(ctx, customer.CustomerID, slot.ID, link)
	})
}

// -----------------------------
// Helpers
// -----------------------------

func (uc *channelUC) slot(id int) (model.ChannelSlot, error) {
	s, err := uc.catalog.Slot(id)
	if err != nil {
		return model.ChannelSlot{}, domain.NewUserError(domain.KindInvalid, MsgUnknownChannel, err)
	}
	return s, nil
}

func (uc *channelUC) requireActivePlan(ctx context.Context, customer model.CustomerContext) error {
	ok, err := uc.billing.HasActivePlan(ctx, customer.CustomerID)
	if err != nil {
		return fmt.Errorf("check active plan: %w", err)
	}
	if !ok {
		return domain.NewUserError(domain.KindPrecondition, MsgNoActivePlan, domain.ErrNoActivePlan)
	}
	return nil
}

func (uc *channelUC) transition(slot model.ChannelSlot, view model.ChannelView, t model.Transition) (model.AssinaturaStatus, error) {
	next, err := model.NextStatus(slot, view, t)
	if err != nil {
		msg := fmt.Sprintf("canal %d não permite %s no estado %s", slot.ID, t, view.Status)
		return "", domain.NewUserError(domain.KindConflict, msg, err)
	}
	return next, nil
}

// reject counts a precondition failure. Non-user errors raised before any
// write (plan lookup) are counted as failures instead.
func (uc *channelUC) reject(op string, err error) error {
	if _, ok := domain.AsUserError(err); ok {
		metrics.IncMutation(op, "rejected")
		return err
	}
	return uc.fail(op, err)
}

func (uc *channelUC) fail(op string, err error) error {
	metrics.IncMutation(op, "failed")
	return err
}

func (uc *channelUC) finish(ctx context.Context, m *mutation, customer model.CustomerContext, res *MutationResult) (*MutationResult, error) {
	metrics.IncMutation(m.op, "ok")
	logging.With(ctx, uc.log).Info().
		Str("operation", m.op).
		Int("channel_id", m.slotID).
		Strs("steps", m.done).
		Msg("channel mutation applied")

	views, err := uc.Load(m.stepContext(ctx), customer)
	if err != nil {
		return nil, fmt.Errorf("%s applied, reload failed: %w", m.op, err)
	}
	res.Channels = views
	return res, nil
}

// mutation tracks the external writes of one operation so a late failure can
// be reported with what already happened.
type mutation struct {
	uc       *channelUC
	customer model.CustomerContext
	op       string
	slotID   int
	done     []string
}

func (m *mutation) stepContext(ctx context.Context) context.Context {
	if len(m.done) == 0 {
		return ctx
	}
	return context.WithoutCancel(ctx)
}

func (uc *channelUC) newMutation(customer model.CustomerContext, op string, slotID int) *mutation {
	return &mutation{uc: uc, customer: customer, op: op, slotID: slotID}
}

// step runs one external write. Once a write has landed, later steps run
// detached from the caller's cancellation.
func (m *mutation) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := fn(m.stepContext(ctx)); err != nil {
		if len(m.done) == 0 {
			metrics.IncMutation(m.op, "failed")
			return fmt.Errorf("%s: %w", name, err)
		}
		return m.partial(ctx, name, err)
	}
	m.done = append(m.done, name)
	return nil
}

// partial does not compensate. It leaves a trail for operators; the next
// reconciliation shows the inconsistency.
func (m *mutation) partial(ctx context.Context, failed string, err error) error {
	perr := &domain.PartialMutationError{
		Operation: m.op,
		SlotID:    m.slotID,
		Completed: append([]string(nil), m.done...),
		Failed:    failed,
		Err:       err,
	}
	metrics.IncMutation(m.op, "partial")
	metrics.IncPartialMutation(m.op, failed)
	logging.With(ctx, m.uc.log).Error().Err(err).
		Str("operation", m.op).
		Int("channel_id", m.slotID).
		Strs("completed", perr.Completed).
		Str("failed_step", failed).
		Msg("channel mutation left external state inconsistent")

	if m.uc.journal != nil {
		entry := &repository.JournalEntry{
			CustomerID: m.customer.CustomerID,
			Operation:  m.op,
			SlotID:     m.slotID,
			Completed:  perr.Completed,
			FailedStep: failed,
			Error:      err.Error(),
			CreatedAt:  time.Now().UTC(),
		}
		// The request context may already be done; the entry still matters.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if jerr := m.uc.journal.Record(jctx, entry); jerr != nil {
			m.uc.log.Error().Err(jerr).Str("operation", m.op).Msg("failed to journal partial mutation")
		}
	}
	return perr
}

func billingMetadata(customer model.CustomerContext, slotID int, category model.BillingCategory) map[string]string {
	return map[string]string{
		model.MetadataType: string(category),
		"channel_id":       strconv.Itoa(slotID),
		"customer_id":      customer.CustomerID,
	}
}

func iaLinkage(slot model.ChannelSlot, created model.CreatedSubscription) model.IALinkage {
	return model.IALinkage{
		SubscriptionItemID: created.SubscriptionItemID,
		PriceID:            slot.IAPriceID,
		Expiration:         model.FormatRecordDate(created.CurrentPeriodEnd),
	}
}

// IsPartial reports whether err is a mutation that stopped half way.
func IsPartial(err error) bool {
	var p *domain.PartialMutationError
	return errors.As(err, &p)
}
