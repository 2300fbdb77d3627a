package model

import "time"

// AssinaturaStatus is the manual lifecycle flag kept by the channel record store.
type AssinaturaStatus string

const (
	AssinaturaAContratar AssinaturaStatus = "acontratar"
	AssinaturaContratado AssinaturaStatus = "contratado"
	AssinaturaCancelado  AssinaturaStatus = "cancelado"
)

func (s AssinaturaStatus) Valid() bool {
	switch s {
	case AssinaturaAContratar, AssinaturaContratado, AssinaturaCancelado:
		return true
	}
	return false
}

// ChannelStatus is the display status derived by the reconciler.
type ChannelStatus string

const (
	ChannelStatusActive     ChannelStatus = "active"
	ChannelStatusCancelled  ChannelStatus = "cancelled"
	ChannelStatusPending    ChannelStatus = "pending"
	ChannelStatusAContratar ChannelStatus = "acontratar"
)

// ChannelRecord is a channel as the InfoZap channel manager stores it.
// Billing fields may be blank or hold LegacyZeroDate.
type ChannelRecord struct {
	ID                      int              `json:"id"`
	Titulo                  string           `json:"titulo"`
	IAAtiva                 int              `json:"ia_ativa"` // advisory only
	IAStripeSI              string           `json:"ia_stripe_si"`
	IAStripePrice           string           `json:"ia_stripe_price"`
	IAStripeExpiration      string           `json:"ia_stripe_expiration"`
	InfozapStripeSI         string           `json:"infozap_stripe_si"`
	InfozapStripePrice      string           `json:"infozap_stripe_price"`
	InfozapStripeExpiration string           `json:"infozap_stripe_expiration"`
	AssinaturaStatus        AssinaturaStatus `json:"assinatura_status"`
	CreatedAt               string           `json:"created_at,omitempty"`
}

// HasIABilling reports whether the IA linkage is filled in.
func (r *ChannelRecord) HasIABilling() bool {
	return r != nil && IsPopulatedDate(r.IAStripeExpiration)
}

// HasChannelBilling reports whether the channel linkage is filled in.
func (r *ChannelRecord) HasChannelBilling() bool {
	return r != nil && IsPopulatedDate(r.InfozapStripeExpiration)
}

// IALinkage is what gets written to a record when IA billing is attached.
type IALinkage struct {
	SubscriptionItemID string
	PriceID            string
	Expiration         string
}

// ChannelLinkage is what gets written to a record when channel billing is attached.
type ChannelLinkage struct {
	SubscriptionItemID string
	PriceID            string
	Expiration         string
}

// ApplyIA returns a copy of r carrying the IA linkage.
func (r ChannelRecord) ApplyIA(l IALinkage) ChannelRecord {
	r.IAStripeSI = l.SubscriptionItemID
	r.IAStripePrice = l.PriceID
	r.IAStripeExpiration = l.Expiration
	r.IAAtiva = 1
	if l.SubscriptionItemID == "" {
		r.IAAtiva = 0
	}
	return r
}

// ApplyChannel returns a copy of r carrying the channel linkage.
func (r ChannelRecord) ApplyChannel(l ChannelLinkage) ChannelRecord {
	r.InfozapStripeSI = l.SubscriptionItemID
	r.InfozapStripePrice = l.PriceID
	r.InfozapStripeExpiration = l.Expiration
	return r
}

// ChannelView is the reconciled, display-ready state of one slot.
type ChannelView struct {
	ID                    int              `json:"id"`
	Titulo                string           `json:"titulo"`
	IA                    bool             `json:"ia"`
	Status                ChannelStatus    `json:"status"`
	InfozapActiveInStripe bool             `json:"infozap_active_in_stripe"`
	IAActiveInStripe      bool             `json:"ia_active_in_stripe"`
	CancelAtPeriodEnd     bool             `json:"cancel_at_period_end"`
	CancelAt              *int64           `json:"cancel_at"`
	AssinaturaStatus      AssinaturaStatus `json:"assinatura_status"`
	CreatedAt             *time.Time       `json:"created_at,omitempty"`
	IsBillable            bool             `json:"is_billable"`
}
