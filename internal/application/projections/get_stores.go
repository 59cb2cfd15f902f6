package projections

import (
	"context"
	"fmt"

	"storefinder/internal/domain/store"
)

// StoreReader is the read side of the store repository.
type StoreReader interface {
	GetByID(ctx context.Context, id string) (store.Store, error)
	GetByEmail(ctx context.Context, email string) (store.Store, error)
	List(ctx context.Context) ([]store.Store, error)
	ListActive(ctx context.Context) ([]store.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]store.Store, error)
}

// GetStoresDeps holds dependencies for the store listing queries.
type GetStoresDeps struct {
	StoreStore StoreReader
}

// QueryAllStores returns every store in creation order.
func QueryAllStores(ctx context.Context, deps GetStoresDeps) ([]store.Store, error) {
	return deps.StoreStore.List(ctx)
}

// QueryActiveStores returns stores with Active set.
func QueryActiveStores(ctx context.Context, deps GetStoresDeps) ([]store.Store, error) {
	return deps.StoreStore.ListActive(ctx)
}

// QueryStoreByID returns one store.
// PRE: id is non-empty
// POST: Returns the store or an error wrapping store.ErrNotFound
func QueryStoreByID(ctx context.Context, id string, deps GetStoresDeps) (store.Store, error) {
	if id == "" {
		return store.Store{}, fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyID)
	}
	return deps.StoreStore.GetByID(ctx, id)
}

// QueryStoreByEmail returns the store registered under email.
// PRE: email is non-empty
// POST: Returns the store or an error wrapping store.ErrNotFound
func QueryStoreByEmail(ctx context.Context, email string, deps GetStoresDeps) (store.Store, error) {
	if email == "" {
		return store.Store{}, fmt.Errorf("%w: email is mandatory", store.ErrValidation)
	}
	return deps.StoreStore.GetByEmail(ctx, email)
}

// StoresByOwnerQuery carries query parameters.
type StoresByOwnerQuery struct {
	OwnerID string
}

// QueryStoresByOwner returns the stores whose owner list contains OwnerID.
// PRE: OwnerID is non-empty
// POST: Returns matching stores; an owner with no stores yields an empty slice
func QueryStoresByOwner(ctx context.Context, query StoresByOwnerQuery, deps GetStoresDeps) ([]store.Store, error) {
	if query.OwnerID == "" {
		return nil, fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyOwner)
	}
	return deps.StoreStore.ListByOwner(ctx, query.OwnerID)
}
