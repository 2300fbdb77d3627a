package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"meu-plano/internal/domain"
	"meu-plano/internal/domain/ports/repository"
)

var _ repository.MutationJournal = (*journalRepo)(nil)

type journalRepo struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewJournalRepo(pool *pgxpool.Pool) *journalRepo {
	return &journalRepo{pool: pool, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (r *journalRepo) newID(t time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), r.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Record fills in ID and CreatedAt when they are empty.
func (r *journalRepo) Record(ctx context.Context, e *repository.JournalEntry) error {
	if e == nil || e.CustomerID == "" || e.Operation == "" {
		return domain.ErrInvalidArgument
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		id, err := r.newID(e.CreatedAt)
		if err != nil {
			return fmt.Errorf("journal id: %w", err)
		}
		e.ID = id
	}
	completed := e.Completed
	if completed == nil {
		completed = []string{}
	}

	const q = `
INSERT INTO mutation_journal (id, customer_id, operation, slot_id, completed, failed_step, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := r.pool.Exec(ctx, q, e.ID, e.CustomerID, e.Operation, e.SlotID, completed, e.FailedStep, e.Error, e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: journal entry %s already recorded", domain.ErrInvalidArgument, e.ID)
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (r *journalRepo) ListRecent(ctx context.Context, customerID string, limit int) ([]*repository.JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const q = `
SELECT id, customer_id, operation, slot_id, completed, failed_step, error, created_at
FROM mutation_journal
WHERE customer_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []*repository.JournalEntry
	for rows.Next() {
		e := &repository.JournalEntry{}
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Operation, &e.SlotID, &e.Completed, &e.FailedStep, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
