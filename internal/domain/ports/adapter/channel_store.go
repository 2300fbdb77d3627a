package adapter

import (
	"context"

	"meu-plano/internal/domain/model"
)

// ChannelStore is the hex port for the InfoZap channel manager.
// It is the intent ledger; billing is the truth ledger.
type ChannelStore interface {
	ListChannels(ctx context.Context, customerID string) ([]model.ChannelRecord, error)
	// UpsertChannel creates or replaces a record with both linkages in one write.
	UpsertChannel(ctx context.Context, customerID string, rec model.ChannelRecord) error
	UpdateStatus(ctx context.Context, customerID string, id int, status model.AssinaturaStatus) error
	IncludeIA(ctx context.Context, customerID string, id int, link model.IALinkage) error
	// RemoveIA clears the IA linkage. The record itself stays.
	RemoveIA(ctx context.Context, customerID string, id int) error
	ReactivateChannel(ctx context.Context, customerID string, id int, link model.ChannelLinkage) error
}
