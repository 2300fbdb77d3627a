package model

import (
	"fmt"

	"meu-plano/internal/domain"
)

// Transition is a customer action on a channel slot.
type Transition string

const (
	TransitionContract   Transition = "contract"
	TransitionCancel     Transition = "cancel"
	TransitionReactivate Transition = "reactivate"
	TransitionToggleIA   Transition = "toggle_ia"
)

type transitionKey struct {
	free bool
	from ChannelStatus
	t    Transition
}

// transitions is keyed on the reconciled display status, not the raw record
// flag: billing truth wins over record intent.
var transitions = map[transitionKey]AssinaturaStatus{
	// slot 0 is always "active"; contracting it means attaching IA.
	{true, ChannelStatusActive, TransitionContract}: AssinaturaContratado,
	{true, ChannelStatusActive, TransitionToggleIA}: AssinaturaContratado,

	{false, ChannelStatusAContratar, TransitionContract}:  AssinaturaContratado,
	{false, ChannelStatusActive, TransitionCancel}:        AssinaturaCancelado,
	{false, ChannelStatusPending, TransitionCancel}:       AssinaturaCancelado,
	{false, ChannelStatusCancelled, TransitionReactivate}: AssinaturaContratado,
	{false, ChannelStatusActive, TransitionToggleIA}:      AssinaturaContratado,
}

// NextStatus is the pure transition function. It returns the assinatura_status
// the record should hold after t, or ErrInvalidTransition.
func NextStatus(slot ChannelSlot, current ChannelView, t Transition) (AssinaturaStatus, error) {
	next, ok := transitions[transitionKey{free: slot.IsFree(), from: current.Status, t: t}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s on slot %d", domain.ErrInvalidTransition, t, current.Status, slot.ID)
	}
	return next, nil
}

// DefaultTitle is shown for slots that have no record yet.
func DefaultTitle(slotID int) string {
	if slotID == FreeSlotID {
		return "Assistente IA"
	}
	return fmt.Sprintf("WhatsApp %d", slotID)
}

// LookupIDs returns the billing ids the reconciler must query for a slot.
// An empty id means "do not query".
func LookupIDs(slot ChannelSlot, rec *ChannelRecord) (channelID, iaID string) {
	if rec == nil {
		return "", ""
	}
	if slot.IsFree() {
		if rec.HasIABilling() {
			iaID = rec.IAStripeSI
		}
		return "", iaID
	}
	if !rec.HasChannelBilling() {
		return "", ""
	}
	return rec.InfozapStripeSI, rec.IAStripeSI
}

// DeriveView merges a slot, its record (nil when absent) and the oracle
// answers (nil when not queried) into the display state. It performs no I/O.
func DeriveView(slot ChannelSlot, rec *ChannelRecord, channel, ia *BillingStatus) ChannelView {
	v := ChannelView{
		ID:     slot.ID,
		Titulo: DefaultTitle(slot.ID),
	}
	if rec != nil {
		if rec.Titulo != "" {
			v.Titulo = rec.Titulo
		}
		if t, ok := ParseRecordDate(rec.CreatedAt); ok {
			v.CreatedAt = &t
		}
	}

	iaActive := ia != nil && ia.Active
	chActive := channel != nil && channel.Active

	if slot.IsFree() {
		v.Status = ChannelStatusActive
		v.AssinaturaStatus = AssinaturaContratado
		if rec != nil && rec.AssinaturaStatus.Valid() {
			v.AssinaturaStatus = rec.AssinaturaStatus
		}
		v.IA = iaActive
		v.IAActiveInStripe = iaActive
		if ia != nil {
			v.CancelAtPeriodEnd = ia.CancelAtPeriodEnd
			v.CancelAt = ia.EffectiveCancelAt()
		}
		return v
	}

	if rec == nil {
		v.Status = ChannelStatusAContratar
		v.AssinaturaStatus = AssinaturaAContratar
		return v
	}

	v.AssinaturaStatus = rec.AssinaturaStatus
	if !rec.HasChannelBilling() {
		v.Status = ChannelStatusAContratar
		return v
	}

	switch rec.AssinaturaStatus {
	case AssinaturaCancelado:
		v.Status = ChannelStatusCancelled
	case AssinaturaContratado:
		switch {
		case chActive:
			v.Status = ChannelStatusActive
		case rec.InfozapStripeSI == "":
			v.Status = ChannelStatusPending
		default:
			v.Status = ChannelStatusCancelled
		}
	default:
		v.Status = ChannelStatusAContratar
	}

	v.IA = iaActive
	v.IAActiveInStripe = iaActive
	v.InfozapActiveInStripe = chActive

	var chCancel, iaCancel *int64
	if channel != nil {
		v.CancelAtPeriodEnd = channel.CancelAtPeriodEnd
		chCancel = channel.EffectiveCancelAt()
	}
	if ia != nil {
		v.CancelAtPeriodEnd = v.CancelAtPeriodEnd || ia.CancelAtPeriodEnd
		iaCancel = ia.EffectiveCancelAt()
	}
	if chCancel != nil {
		v.CancelAt = chCancel
	} else {
		v.CancelAt = iaCancel
	}
	return v
}
