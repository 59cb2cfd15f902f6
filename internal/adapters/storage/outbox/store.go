package outbox

import (
	"context"
	"time"

	domain "storefinder/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error wrapping domain.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry to the database.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns pending or retrying entries due at now.
	// PRE: limit > 0
	// POST: Returns up to limit entries whose NextAttemptAt is zero or not after now
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// ListFailed returns entries that have permanently failed.
	// PRE: limit > 0
	// POST: Returns up to limit failed entries ordered by last_attempted_at desc
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListByStatus returns entries in the given status, newest first; empty status means any.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error)

	// Delete removes an outbox entry (only for abandoned/terminal entries).
	// PRE: id is non-empty and entry is in terminal state
	// POST: Entry is removed from database
	Delete(ctx context.Context, id string) error
}
