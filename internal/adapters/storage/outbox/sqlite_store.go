package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefinder/internal/adapters/storage"
	domain "storefinder/internal/domain/outbox"
)

const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "id, action_type, topic, msg_key, payload, status, attempts, max_attempts, last_attempted_at, next_attempt_at, created_at, external_id, error_message"

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the outbox Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an outbox entry by its ID.
// PRE: id is non-empty
// POST: Returns the entry or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM outbox WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("outbox entry %s: %w", id, domain.ErrNotFound)
	}
	return e, err
}

// Save persists an outbox entry to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, next_attempt_at=excluded.next_attempt_at,
		   external_id=excluded.external_id, error_message=excluded.error_message`,
		e.ID, e.ActionType, e.Topic, e.Key, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		formatOptional(e.LastAttemptedAt), formatOptional(e.NextAttemptAt),
		e.CreatedAt.UTC().Format(dateLayout), e.ExternalID, e.ErrorMessage)
	return err
}

// ListPending returns pending or retrying entries that are due at now.
// Entries still in backoff are filtered out before the limit applies.
// PRE: limit > 0
// POST: Returns up to limit due entries, never-scheduled first, then by next_attempt_at and created_at
func (s *SQLiteStore) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	return s.query(ctx,
		"SELECT "+entryColumns+` FROM outbox
		 WHERE status IN (?, ?) AND next_attempt_at <= ?
		 ORDER BY next_attempt_at ASC, created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, now.UTC().Format(dateLayout), limit)
}

// ListFailed returns entries that have permanently failed.
// PRE: limit > 0
// POST: Returns up to limit failed entries ordered by last_attempted_at desc
func (s *SQLiteStore) ListFailed(ctx context.Context, limit int) ([]domain.Entry, error) {
	return s.query(ctx,
		"SELECT "+entryColumns+" FROM outbox WHERE status = ? AND attempts >= max_attempts ORDER BY last_attempted_at DESC LIMIT ?",
		domain.StatusFailed, limit)
}

// ListByStatus returns entries in status (any status when empty), newest first.
// PRE: limit > 0
// POST: Returns up to limit entries ordered by created_at desc
func (s *SQLiteStore) ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error) {
	if status == "" {
		return s.query(ctx, "SELECT "+entryColumns+" FROM outbox ORDER BY created_at DESC LIMIT ?", limit)
	}
	return s.query(ctx,
		"SELECT "+entryColumns+" FROM outbox WHERE status = ? ORDER BY created_at DESC LIMIT ?", status, limit)
}

// Delete removes an outbox entry (only for abandoned/terminal entries).
// PRE: id is non-empty and entry is in terminal state
// POST: Entry is removed from database
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (domain.Entry, error) {
	var e domain.Entry
	var createdAt, lastAttemptedAt, nextAttemptAt string
	err := sc.Scan(&e.ID, &e.ActionType, &e.Topic, &e.Key, &e.Payload, &e.Status, &e.Attempts,
		&e.MaxAttempts, &lastAttemptedAt, &nextAttemptAt, &createdAt, &e.ExternalID, &e.ErrorMessage)
	if err != nil {
		return domain.Entry{}, err
	}
	if e.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
		return domain.Entry{}, fmt.Errorf("outbox entry %s: created_at: %w", e.ID, err)
	}
	if e.LastAttemptedAt, err = parseOptional(lastAttemptedAt); err != nil {
		return domain.Entry{}, fmt.Errorf("outbox entry %s: last_attempted_at: %w", e.ID, err)
	}
	if e.NextAttemptAt, err = parseOptional(nextAttemptAt); err != nil {
		return domain.Entry{}, fmt.Errorf("outbox entry %s: next_attempt_at: %w", e.ID, err)
	}
	return e, nil
}

// formatOptional stores the zero time as an empty string, which sorts before any timestamp.
func formatOptional(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func parseOptional(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, v)
}
