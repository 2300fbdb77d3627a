package model

import "meu-plano/internal/domain"

// CustomerContext identifies whose billing state an operation reads or mutates.
// It is passed explicitly into every use-case call.
type CustomerContext struct {
	CustomerID string
	// IncludedWhatsAppSlots is the fallback when the plan carries no
	// included_whatsapp_slots metadata.
	IncludedWhatsAppSlots int
}

func NewCustomerContext(customerID string, includedSlots int) (CustomerContext, error) {
	if customerID == "" || includedSlots < 0 {
		return CustomerContext{}, domain.ErrInvalidArgument
	}
	return CustomerContext{CustomerID: customerID, IncludedWhatsAppSlots: includedSlots}, nil
}
