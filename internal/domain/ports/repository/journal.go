package repository

import (
	"context"
	"time"
)

// JournalEntry records a mutation that stopped half way. Nothing is
// compensated automatically; operators read these.
type JournalEntry struct {
	ID         string
	CustomerID string
	Operation  string
	SlotID     int
	Completed  []string
	FailedStep string
	Error      string
	CreatedAt  time.Time
}

type MutationJournal interface {
	Record(ctx context.Context, e *JournalEntry) error
	ListRecent(ctx context.Context, customerID string, limit int) ([]*JournalEntry, error)
}
