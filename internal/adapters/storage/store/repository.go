package store

import (
	"context"

	domain "storefinder/internal/domain/store"
)

// Repository defines persistence for Store records.
// Every method is atomic per store. Lookups that miss return an error
// wrapping domain.ErrNotFound.
type Repository interface {
	// GetByID retrieves a store by its ID.
	// PRE: id is non-empty
	// POST: Returns the store or an error wrapping domain.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Store, error)

	// GetByEmail retrieves a store by its contact email.
	// PRE: email is non-empty
	// POST: Returns the store or an error wrapping domain.ErrNotFound
	GetByEmail(ctx context.Context, email string) (domain.Store, error)

	// Save persists a store (insert or full replace, owner list included).
	// PRE: s has been validated
	// POST: Store persisted; domain.ErrEmailTaken if another store holds the email
	Save(ctx context.Context, s domain.Store) error

	// Delete removes a store and its owner list.
	// PRE: id is non-empty
	// POST: Store removed, or an error wrapping domain.ErrNotFound
	Delete(ctx context.Context, id string) error

	// List returns every store ordered by creation time.
	List(ctx context.Context) ([]domain.Store, error)

	// ListActive returns stores with Active set, ordered by creation time.
	ListActive(ctx context.Context) ([]domain.Store, error)

	// ListByOwner returns stores whose owner list contains ownerID.
	// PRE: ownerID is non-empty
	// POST: Returns matching stores ordered by creation time (possibly empty)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error)
}
