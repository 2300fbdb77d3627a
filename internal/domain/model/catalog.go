package model

import (
	"fmt"

	"meu-plano/internal/domain"
)

// NumSlots is the fixed number of channel slots shown on the plan page.
const NumSlots = 5

// FreeSlotID is the IA-only slot. It has no WhatsApp billing dimension.
const FreeSlotID = 0

// ChannelSlot maps a slot to the billing products it sells.
type ChannelSlot struct {
	ID               int
	ChannelProductID string
	ChannelPriceID   string
	IAProductID      string
	IAPriceID        string
}

func (s ChannelSlot) IsFree() bool { return s.ID == FreeSlotID }

// Catalog is the immutable, ordered list of slots 0..NumSlots-1.
type Catalog struct {
	slots [NumSlots]ChannelSlot
}

// NewCatalog validates that every slot id appears exactly once and that paid
// slots carry a channel price.
func NewCatalog(slots []ChannelSlot) (*Catalog, error) {
	if len(slots) != NumSlots {
		return nil, fmt.Errorf("%w: catalog needs %d slots, got %d", domain.ErrInvalidArgument, NumSlots, len(slots))
	}
	var c Catalog
	seen := make(map[int]bool, NumSlots)
	for _, s := range slots {
		if s.ID < 0 || s.ID >= NumSlots {
			return nil, fmt.Errorf("%w: slot id %d", domain.ErrUnknownSlot, s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate slot id %d", domain.ErrInvalidArgument, s.ID)
		}
		seen[s.ID] = true
		if s.IAPriceID == "" {
			return nil, fmt.Errorf("%w: slot %d has no IA price", domain.ErrInvalidArgument, s.ID)
		}
		if s.IsFree() {
			s.ChannelProductID, s.ChannelPriceID = "", ""
		} else if s.ChannelPriceID == "" {
			return nil, fmt.Errorf("%w: slot %d has no channel price", domain.ErrInvalidArgument, s.ID)
		}
		c.slots[s.ID] = s
	}
	return &c, nil
}

// Slots returns the slots ordered by id.
func (c *Catalog) Slots() []ChannelSlot {
	out := make([]ChannelSlot, NumSlots)
	copy(out, c.slots[:])
	return out
}

func (c *Catalog) Slot(id int) (ChannelSlot, error) {
	if id < 0 || id >= NumSlots {
		return ChannelSlot{}, domain.ErrUnknownSlot
	}
	return c.slots[id], nil
}
