package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "storefinder/internal/domain/store"
)

// Compile-time interface check.
var _ Repository = (*MemoryStore)(nil)

// MemoryStore is a map-backed Repository. Stores are copied on the way in
// and out so callers never share owner slices with the map.
type MemoryStore struct {
	mu     sync.RWMutex
	stores map[string]domain.Store
}

// NewMemoryStore creates an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stores: map[string]domain.Store{}}
}

// GetByID retrieves a Store by its ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[id]
	if !ok {
		return domain.Store{}, fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// GetByEmail retrieves a Store by email.
func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stores {
		if s.Email == email {
			return s.Clone(), nil
		}
	}
	return domain.Store{}, fmt.Errorf("store %s: %w", email, domain.ErrNotFound)
}

// Save inserts or replaces a Store.
// POST: domain.ErrEmailTaken if a different store already holds the email
func (m *MemoryStore) Save(ctx context.Context, s domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.stores {
		if id != s.ID && other.Email == s.Email {
			return fmt.Errorf("email %s: %w", s.Email, domain.ErrEmailTaken)
		}
	}
	m.stores[s.ID] = s.Clone()
	return nil
}

// Delete removes a Store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[id]; !ok {
		return fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	delete(m.stores, id)
	return nil
}

// List returns all stores ordered by creation time.
func (m *MemoryStore) List(ctx context.Context) ([]domain.Store, error) {
	return m.filter(func(domain.Store) bool { return true }), nil
}

// ListActive returns active stores ordered by creation time.
func (m *MemoryStore) ListActive(ctx context.Context) ([]domain.Store, error) {
	return m.filter(func(s domain.Store) bool { return s.Active }), nil
}

// ListByOwner returns stores whose owner list contains ownerID.
func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error) {
	return m.filter(func(s domain.Store) bool { return s.HasOwner(ownerID) }), nil
}

func (m *MemoryStore) filter(keep func(domain.Store) bool) []domain.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Store{}
	for _, s := range m.stores {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
