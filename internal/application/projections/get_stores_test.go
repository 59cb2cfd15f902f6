package projections

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"storefinder/internal/domain/store"
	"storefinder/internal/observability"
)

// mockStoreReader implements StoreReader over a slice.
type mockStoreReader struct {
	stores  []store.Store
	listErr error
	lists   int
}

func (m *mockStoreReader) GetByID(_ context.Context, id string) (store.Store, error) {
	for _, s := range m.stores {
		if s.ID == id {
			return s, nil
		}
	}
	return store.Store{}, fmt.Errorf("store %s: %w", id, store.ErrNotFound)
}

func (m *mockStoreReader) GetByEmail(_ context.Context, email string) (store.Store, error) {
	for _, s := range m.stores {
		if s.Email == email {
			return s, nil
		}
	}
	return store.Store{}, fmt.Errorf("store %s: %w", email, store.ErrNotFound)
}

func (m *mockStoreReader) List(_ context.Context) ([]store.Store, error) {
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.stores, nil
}

func (m *mockStoreReader) ListActive(_ context.Context) ([]store.Store, error) {
	out := []store.Store{}
	for _, s := range m.stores {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStoreReader) ListByOwner(_ context.Context, ownerID string) ([]store.Store, error) {
	out := []store.Store{}
	for _, s := range m.stores {
		if s.HasOwner(ownerID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func sampleStores() []store.Store {
	return []store.Store{
		{ID: "s1", Name: "Glasgow Grocer", Email: "g@example.com", Active: true, Latitude: 55.0, Longitude: -5.0, OwnerIDs: []string{"o1"}},
		{ID: "s2", Name: "Closed Kiosk", Email: "k@example.com", Active: false, Latitude: 51.5074, Longitude: -0.1278, OwnerIDs: []string{"o1", "o2"}},
		{ID: "s3", Name: "Arran Bakery", Email: "b@example.com", Active: true, Latitude: 55.05, Longitude: -5.05},
	}
}

// TestQueryStoreLookups tests the pass-through accessors.
func TestQueryStoreLookups(t *testing.T) {
	deps := GetStoresDeps{StoreStore: &mockStoreReader{stores: sampleStores()}}
	ctx := context.Background()

	all, err := QueryAllStores(ctx, deps)
	if err != nil || len(all) != 3 {
		t.Fatalf("QueryAllStores: got %d stores, err %v", len(all), err)
	}
	active, _ := QueryActiveStores(ctx, deps)
	if len(active) != 2 {
		t.Errorf("expected 2 active stores, got %d", len(active))
	}
	s, err := QueryStoreByID(ctx, "s2", deps)
	if err != nil || s.Name != "Closed Kiosk" {
		t.Errorf("QueryStoreByID: got %+v, err %v", s, err)
	}
	s, err = QueryStoreByEmail(ctx, "b@example.com", deps)
	if err != nil || s.ID != "s3" {
		t.Errorf("QueryStoreByEmail: got %+v, err %v", s, err)
	}
	if _, err := QueryStoreByID(ctx, "missing", deps); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := QueryStoreByEmail(ctx, "", deps); !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation for empty email, got %v", err)
	}
}

// TestQueryStoresByOwner tests owner lookups.
func TestQueryStoresByOwner(t *testing.T) {
	deps := GetStoresDeps{StoreStore: &mockStoreReader{stores: sampleStores()}}

	tests := []struct {
		owner string
		want  []string
	}{
		{owner: "o1", want: []string{"s1", "s2"}},
		{owner: "o2", want: []string{"s2"}},
		{owner: "nobody", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			got, err := QueryStoresByOwner(context.Background(), StoresByOwnerQuery{OwnerID: tt.owner}, deps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d stores", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("store[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	if _, err := QueryStoresByOwner(context.Background(), StoresByOwnerQuery{}, deps); !errors.Is(err, store.ErrEmptyOwner) {
		t.Errorf("expected ErrEmptyOwner, got %v", err)
	}
}

// TestQueryNearbyStores tests the radius filter over the full collection.
func TestQueryNearbyStores(t *testing.T) {
	reader := &mockStoreReader{stores: sampleStores()}
	deps := NearbyStoresDeps{StoreStore: reader}
	ctx := context.Background()

	got, err := QueryNearbyStores(ctx, NearbyStoresQuery{Latitude: 55.1, Longitude: -5.1}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s3" {
		t.Errorf("expected [s1 s3] in repository order, got %+v", got)
	}

	got, err = QueryNearbyStores(ctx, NearbyStoresQuery{Latitude: 60.0, Longitude: -10.0}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
	if reader.lists != 2 {
		t.Errorf("expected one full scan per query, got %d", reader.lists)
	}
}

// TestQueryNearbyStores_RepositoryError tests that load errors pass through unchanged.
func TestQueryNearbyStores_RepositoryError(t *testing.T) {
	boom := errors.New("db gone")
	_, err := QueryNearbyStores(context.Background(), NearbyStoresQuery{},
		NearbyStoresDeps{StoreStore: &mockStoreReader{listErr: boom}})
	if err != boom {
		t.Errorf("expected repository error unchanged, got %v", err)
	}
}

// TestQueryNearbyStores_RecordsScanSize tests the scanned-stores histogram.
func TestQueryNearbyStores_RecordsScanSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := NearbyStoresDeps{
		StoreStore: &mockStoreReader{stores: sampleStores()},
		Metrics:    observability.NewMetrics(reg),
	}
	if _, err := QueryNearbyStores(context.Background(), NearbyStoresQuery{Latitude: 55, Longitude: -5}, deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, _ := reg.Gather()
	for _, f := range families {
		if f.GetName() == "storefinder_nearby_scanned_stores" {
			h := f.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 1 || h.GetSampleSum() != 3 {
				t.Errorf("expected one sample of 3, got count=%d sum=%v", h.GetSampleCount(), h.GetSampleSum())
			}
			return
		}
	}
	t.Fatal("nearby scan histogram not found")
}
