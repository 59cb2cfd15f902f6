package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storefinder/internal/domain/store"
	"storefinder/internal/observability"
)

// StoreRepoForLifecycle defines the repository slice create/update/delete need.
type StoreRepoForLifecycle interface {
	GetByID(ctx context.Context, id string) (store.Store, error)
	Save(ctx context.Context, s store.Store) error
	Delete(ctx context.Context, id string) error
}

// StoreAttributes are the caller-editable fields of a store.
// A nil Active means "default": true on create, unchanged on update.
type StoreAttributes struct {
	Name        string
	Region      string
	Address     string
	Active      *bool
	PhoneNumber string
	Email       string
	Latitude    float64
	Longitude   float64
	StoreType   string
	Rating      int
	DeliveryFee int64
}

func (a StoreAttributes) toStore(active bool) store.Store {
	if a.Active != nil {
		active = *a.Active
	}
	return store.Store{
		Name:        a.Name,
		Region:      a.Region,
		Address:     a.Address,
		Active:      active,
		PhoneNumber: a.PhoneNumber,
		Email:       a.Email,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		StoreType:   a.StoreType,
		Rating:      a.Rating,
		DeliveryFee: a.DeliveryFee,
	}
}

// CreateStoreInput carries input for the create-store orchestrator.
type CreateStoreInput struct {
	StoreAttributes
}

// CreateStoreDeps holds dependencies for CreateStore.
type CreateStoreDeps struct {
	StoreRepo  StoreRepoForLifecycle
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteCreateStore validates and persists a new store with no owners.
// PRE: input attributes are populated
// POST: Store saved with a fresh UUID, Active defaulted to true, empty owner list
func ExecuteCreateStore(ctx context.Context, input CreateStoreInput, deps CreateStoreDeps) (store.Store, error) {
	s := input.toStore(true)
	if err := s.Validate(); err != nil {
		return store.Store{}, err
	}

	s.ID = generateID(deps.GenerateID)
	s.OwnerIDs = []string{}
	s.CreatedAt = nowOrDefault(deps.Now)
	s.UpdatedAt = s.CreatedAt

	if err := deps.StoreRepo.Save(ctx, s); err != nil {
		return store.Store{}, err
	}
	slog.Info("store_event", "event", "store_created", "store_id", s.ID)
	return s, nil
}

// UpdateStoreInput carries input for the update-store orchestrator.
type UpdateStoreInput struct {
	StoreID string
	StoreAttributes
}

// UpdateStoreDeps holds dependencies for UpdateStore.
type UpdateStoreDeps struct {
	StoreRepo StoreRepoForLifecycle
	Locker    Locker // optional
	Now       func() time.Time
}

// ExecuteUpdateStore replaces a store's attributes.
// PRE: StoreID is non-empty
// POST: Attributes replaced and saved; ID, owner list and CreatedAt unchanged
func ExecuteUpdateStore(ctx context.Context, input UpdateStoreInput, deps UpdateStoreDeps) (s store.Store, err error) {
	if input.StoreID == "" {
		return store.Store{}, fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyID)
	}
	ctx, span := tracer.StartStoreSpan(ctx, "update", input.StoreID, "")
	defer func() { observability.End(span, err) }()

	unlock, err := lockStore(ctx, deps.Locker, input.StoreID)
	if err != nil {
		return store.Store{}, err
	}
	defer unlock()

	s, err = deps.StoreRepo.GetByID(ctx, input.StoreID)
	if err != nil {
		return store.Store{}, err
	}

	s.ApplyUpdate(input.toStore(s.Active))
	if err := s.Validate(); err != nil {
		return store.Store{}, err
	}
	s.UpdatedAt = nowOrDefault(deps.Now)

	if err := deps.StoreRepo.Save(ctx, s); err != nil {
		return store.Store{}, err
	}
	slog.Info("store_event", "event", "store_updated", "store_id", s.ID)
	return s, nil
}

// DeleteStoreInput carries input for the delete-store orchestrator.
type DeleteStoreInput struct {
	StoreID string
}

// DeleteStoreDeps holds dependencies for DeleteStore.
type DeleteStoreDeps struct {
	StoreRepo StoreRepoForLifecycle
	Locker    Locker // optional
}

// ExecuteDeleteStore removes a store and its owner list.
// PRE: StoreID is non-empty
// POST: Store removed; store.ErrNotFound (and no write) when it does not exist
func ExecuteDeleteStore(ctx context.Context, input DeleteStoreInput, deps DeleteStoreDeps) error {
	if input.StoreID == "" {
		return fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyID)
	}
	unlock, err := lockStore(ctx, deps.Locker, input.StoreID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := deps.StoreRepo.GetByID(ctx, input.StoreID); err != nil {
		return err
	}
	if err := deps.StoreRepo.Delete(ctx, input.StoreID); err != nil {
		return err
	}
	slog.Info("store_event", "event", "store_deleted", "store_id", input.StoreID)
	return nil
}

func generateID(gen func() string) string {
	if gen == nil {
		return uuid.NewString()
	}
	return gen()
}
