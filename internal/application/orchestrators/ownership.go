package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefinder/internal/domain/ownership"
	"storefinder/internal/domain/store"
	"storefinder/internal/observability"
)

var tracer = observability.NewTracer()

// StoreRepoForOwnership defines the repository slice the ownership operations need.
type StoreRepoForOwnership interface {
	GetByID(ctx context.Context, id string) (store.Store, error)
	Save(ctx context.Context, s store.Store) error
}

// EventSink publishes role update events. Delivery is the sink's concern.
type EventSink interface {
	Publish(ctx context.Context, topic string, event ownership.RoleUpdateEvent) error
}

// Locker serialises read-modify-write cycles on one store.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// lockStore takes the per-store lock, or nothing when no Locker is configured.
func lockStore(ctx context.Context, l Locker, storeID string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	return l.Lock(ctx, "store:"+storeID)
}

func nowOrDefault(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}

func requireIDs(storeID, ownerID string) error {
	if storeID == "" {
		return fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyID)
	}
	if ownerID == "" {
		return fmt.Errorf("%w: %w", store.ErrValidation, store.ErrEmptyOwner)
	}
	return nil
}

// AddOwnerInput carries input for the add-owner orchestrator.
type AddOwnerInput struct {
	StoreID string
	OwnerID string
}

// AddOwnerDeps holds dependencies for AddOwner.
type AddOwnerDeps struct {
	StoreRepo StoreRepoForOwnership
	Events    EventSink
	Locker    Locker // optional
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// ExecuteAddOwner adds an owner to a store and announces the new role.
// PRE: StoreID and OwnerID are non-empty
// POST: OwnerID appears exactly once in the store's owner list; when it was
// absent the store is saved and then one RoleUpdateEvent is published
// INVARIANT: a present owner causes no write and no event
func ExecuteAddOwner(ctx context.Context, input AddOwnerInput, deps AddOwnerDeps) (s store.Store, err error) {
	if err := requireIDs(input.StoreID, input.OwnerID); err != nil {
		return store.Store{}, err
	}
	ctx, span := tracer.StartStoreSpan(ctx, "add_owner", input.StoreID, input.OwnerID)
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

	if !s.AddOwner(input.OwnerID) {
		deps.Metrics.RecordOwnershipChange("unchanged")
		slog.Debug("store_event", "event", "owner_already_present", "store_id", s.ID, "owner_id", input.OwnerID)
		return s, nil
	}
	s.UpdatedAt = nowOrDefault(deps.Now)

	if err := deps.StoreRepo.Save(ctx, s); err != nil {
		return store.Store{}, err
	}
	deps.Metrics.RecordOwnershipChange("added")

	err = deps.Events.Publish(ctx, ownership.TopicUserRoleUpdates, ownership.NewOwnerEvent(input.OwnerID))
	deps.Metrics.RecordPublish(ownership.TopicUserRoleUpdates, err)
	if err != nil {
		slog.Error("store_event_publish_failed", "store_id", s.ID, "owner_id", input.OwnerID, "error", err)
		return store.Store{}, err
	}

	slog.Info("store_event", "event", "owner_added", "store_id", s.ID, "owner_id", input.OwnerID)
	return s, nil
}

// RemoveOwnerInput carries input for the remove-owner orchestrator.
type RemoveOwnerInput struct {
	StoreID string
	OwnerID string
}

// RemoveOwnerDeps holds dependencies for RemoveOwner.
type RemoveOwnerDeps struct {
	StoreRepo StoreRepoForOwnership
	Locker    Locker // optional
	Metrics   *observability.Metrics
	Now       func() time.Time
}

// ExecuteRemoveOwner removes the first occurrence of an owner from a store.
// PRE: StoreID and OwnerID are non-empty
// POST: OwnerID removed and store saved; an absent owner leaves the store untouched
// INVARIANT: never publishes an event
func ExecuteRemoveOwner(ctx context.Context, input RemoveOwnerInput, deps RemoveOwnerDeps) (s store.Store, err error) {
	if err := requireIDs(input.StoreID, input.OwnerID); err != nil {
		return store.Store{}, err
	}
	ctx, span := tracer.StartStoreSpan(ctx, "remove_owner", input.StoreID, input.OwnerID)
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

	if !s.RemoveOwner(input.OwnerID) {
		deps.Metrics.RecordOwnershipChange("unchanged")
		slog.Debug("store_event", "event", "owner_not_present", "store_id", s.ID, "owner_id", input.OwnerID)
		return s, nil
	}
	s.UpdatedAt = nowOrDefault(deps.Now)

	if err := deps.StoreRepo.Save(ctx, s); err != nil {
		return store.Store{}, err
	}
	deps.Metrics.RecordOwnershipChange("removed")
	slog.Info("store_event", "event", "owner_removed", "store_id", s.ID, "owner_id", input.OwnerID)
	return s, nil
}
