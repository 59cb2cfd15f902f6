package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefinder/internal/domain/store"
)

func boolPtr(b bool) *bool { return &b }

func validAttributes() StoreAttributes {
	return StoreAttributes{
		Name:        "Harbour Deli",
		Region:      "Wellington",
		Address:     "12 Quay St",
		PhoneNumber: "021555000",
		Email:       "deli@example.com",
		Latitude:    -41.2865,
		Longitude:   174.7762,
		StoreType:   "deli",
		Rating:      4,
		DeliveryFee: 450,
	}
}

// --- ExecuteCreateStore tests ---

// TestExecuteCreateStore_Success tests that a valid store is saved with defaults.
func TestExecuteCreateStore_Success(t *testing.T) {
	repo := newFakeStoreRepo(nil)

	s, err := ExecuteCreateStore(context.Background(), CreateStoreInput{StoreAttributes: validAttributes()},
		CreateStoreDeps{StoreRepo: repo, GenerateID: func() string { return "store-1" }, Now: storeNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "store-1" {
		t.Errorf("expected ID store-1, got %s", s.ID)
	}
	if !s.Active {
		t.Error("expected Active to default to true")
	}
	if s.OwnerIDs == nil || len(s.OwnerIDs) != 0 {
		t.Errorf("expected empty non-nil owner list, got %v", s.OwnerIDs)
	}
	if !s.CreatedAt.Equal(storeClock) || !s.UpdatedAt.Equal(storeClock) {
		t.Errorf("expected timestamps %v, got %v / %v", storeClock, s.CreatedAt, s.UpdatedAt)
	}
	if _, ok := repo.stores["store-1"]; !ok {
		t.Error("expected store to be saved")
	}
}

// TestExecuteCreateStore_ExplicitInactive tests that an explicit false is honoured.
func TestExecuteCreateStore_ExplicitInactive(t *testing.T) {
	attrs := validAttributes()
	attrs.Active = boolPtr(false)

	s, err := ExecuteCreateStore(context.Background(), CreateStoreInput{StoreAttributes: attrs},
		CreateStoreDeps{StoreRepo: newFakeStoreRepo(nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Active {
		t.Error("expected Active=false")
	}
	if s.ID == "" {
		t.Error("expected a generated ID")
	}
}

// TestExecuteCreateStore_Invalid tests that validation failures skip the write.
func TestExecuteCreateStore_Invalid(t *testing.T) {
	repo := newFakeStoreRepo(nil)
	attrs := validAttributes()
	attrs.Email = "not-an-email"

	_, err := ExecuteCreateStore(context.Background(), CreateStoreInput{StoreAttributes: attrs},
		CreateStoreDeps{StoreRepo: repo})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.saves != 0 {
		t.Errorf("expected no save, got %d", repo.saves)
	}
}

// --- ExecuteUpdateStore tests ---

// TestExecuteUpdateStore_KeepsOwnersAndIdentity tests that update only touches attributes.
func TestExecuteUpdateStore_KeepsOwnersAndIdentity(t *testing.T) {
	existing := seedStore("s1", "o1", "o2")
	existing.CreatedAt = storeClock.Add(-48 * time.Hour)
	repo := newFakeStoreRepo(nil, existing)

	attrs := validAttributes()
	attrs.Name = "Renamed Deli"
	s, err := ExecuteUpdateStore(context.Background(), UpdateStoreInput{StoreID: "s1", StoreAttributes: attrs},
		UpdateStoreDeps{StoreRepo: repo, Now: storeNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "s1" || s.Name != "Renamed Deli" || s.Latitude != attrs.Latitude || s.Rating != attrs.Rating {
		t.Errorf("unexpected updated store: %+v", s)
	}
	if len(s.OwnerIDs) != 2 {
		t.Errorf("expected owners preserved, got %v", s.OwnerIDs)
	}
	if !s.CreatedAt.Equal(existing.CreatedAt) {
		t.Errorf("expected CreatedAt preserved, got %v", s.CreatedAt)
	}
	if !s.UpdatedAt.Equal(storeClock) {
		t.Errorf("expected UpdatedAt=%v, got %v", storeClock, s.UpdatedAt)
	}
	if !s.Active {
		t.Error("expected nil Active to keep the current value")
	}
}

// TestExecuteUpdateStore_Deactivate tests an explicit Active change.
func TestExecuteUpdateStore_Deactivate(t *testing.T) {
	repo := newFakeStoreRepo(nil, seedStore("s1"))
	attrs := validAttributes()
	attrs.Active = boolPtr(false)

	s, err := ExecuteUpdateStore(context.Background(), UpdateStoreInput{StoreID: "s1", StoreAttributes: attrs},
		UpdateStoreDeps{StoreRepo: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Active {
		t.Error("expected store to be deactivated")
	}
}

// TestExecuteUpdateStore_Errors tests not-found and validation failures.
func TestExecuteUpdateStore_Errors(t *testing.T) {
	invalidAttrs := validAttributes()
	invalidAttrs.Name = "  "

	tests := []struct {
		name string
		in   UpdateStoreInput
		want error
	}{
		{name: "missing id", in: UpdateStoreInput{StoreAttributes: validAttributes()}, want: store.ErrEmptyID},
		{name: "not found", in: UpdateStoreInput{StoreID: "nope", StoreAttributes: validAttributes()}, want: store.ErrNotFound},
		{name: "invalid", in: UpdateStoreInput{StoreID: "s1", StoreAttributes: invalidAttrs}, want: store.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeStoreRepo(nil, seedStore("s1"))
			_, err := ExecuteUpdateStore(context.Background(), tt.in, UpdateStoreDeps{StoreRepo: repo})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if repo.saves != 0 {
				t.Errorf("expected no save, got %d", repo.saves)
			}
		})
	}
}

// --- ExecuteDeleteStore tests ---

// TestExecuteDeleteStore tests deleting present and missing stores.
func TestExecuteDeleteStore(t *testing.T) {
	repo := newFakeStoreRepo(nil, seedStore("s1", "o1"))

	if err := ExecuteDeleteStore(context.Background(), DeleteStoreInput{StoreID: "s1"}, DeleteStoreDeps{StoreRepo: repo}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.stores["s1"]; ok {
		t.Error("expected store to be removed")
	}

	err := ExecuteDeleteStore(context.Background(), DeleteStoreInput{StoreID: "s1"}, DeleteStoreDeps{StoreRepo: repo})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if repo.deletes != 1 {
		t.Errorf("expected exactly 1 delete, got %d", repo.deletes)
	}
}
