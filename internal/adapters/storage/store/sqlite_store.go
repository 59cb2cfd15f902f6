package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"storefinder/internal/adapters/storage"
	domain "storefinder/internal/domain/store"
)

const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

const storeColumns = "s.id, s.name, s.region, s.address, s.active, s.phone_number, s.email, s.latitude, s.longitude, s.store_type, s.rating, s.delivery_fee, s.created_at, s.updated_at"

// Compile-time interface check.
var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
// Owner lists live in store_owner, one row per position.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new store repository.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Store by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Store, error) {
	return s.getOne(ctx, "s.id = ?", id)
}

// GetByEmail retrieves a Store by email.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Store, error) {
	return s.getOne(ctx, "s.email = ?", email)
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg string) (domain.Store, error) {
	list, err := s.listWhere(ctx, where, arg)
	if err != nil {
		return domain.Store{}, err
	}
	if len(list) == 0 {
		return domain.Store{}, fmt.Errorf("store %s: %w", arg, domain.ErrNotFound)
	}
	return list[0], nil
}

// Save persists a Store and replaces its owner rows.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update); domain.ErrEmailTaken on email conflict
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Store) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO store (id, name, region, address, active, phone_number, email, latitude, longitude, store_type, rating, delivery_fee, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, region=excluded.region, address=excluded.address, active=excluded.active,
		   phone_number=excluded.phone_number, email=excluded.email, latitude=excluded.latitude,
		   longitude=excluded.longitude, store_type=excluded.store_type, rating=excluded.rating,
		   delivery_fee=excluded.delivery_fee, updated_at=excluded.updated_at`,
		entity.ID, entity.Name, entity.Region, entity.Address, entity.Active, entity.PhoneNumber,
		entity.Email, entity.Latitude, entity.Longitude, entity.StoreType, entity.Rating,
		entity.DeliveryFee, formatTime(entity.CreatedAt), formatTime(entity.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: store.email") {
			return fmt.Errorf("email %s: %w", entity.Email, domain.ErrEmailTaken)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM store_owner WHERE store_id = ?`, entity.ID); err != nil {
		return err
	}
	for pos, ownerID := range entity.OwnerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO store_owner (store_id, owner_id, position) VALUES (?, ?, ?)`,
			entity.ID, ownerID, pos); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a Store; owner rows cascade.
// PRE: id is non-empty
// POST: Entity removed, or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM store WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns all stores ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Store, error) {
	return s.listWhere(ctx, "")
}

// ListActive returns active stores ordered by creation time.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]domain.Store, error) {
	return s.listWhere(ctx, "s.active = 1")
}

// ListByOwner returns the stores an owner appears on, using the owner index.
// PRE: ownerID is non-empty
// POST: Returns matching stores ordered by creation time
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error) {
	return s.listWhere(ctx, "s.id IN (SELECT store_id FROM store_owner WHERE owner_id = ?)", ownerID)
}

// listWhere loads stores matching where, then their owner rows with the same filter.
// Rows are fully drained before the second query so a single connection suffices.
func (s *SQLiteStore) listWhere(ctx context.Context, where string, args ...any) ([]domain.Store, error) {
	clause := ""
	if where != "" {
		clause = " WHERE " + where
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+storeColumns+" FROM store s"+clause+" ORDER BY s.created_at ASC, s.id ASC", args...)
	if err != nil {
		return nil, err
	}
	results, index, err := scanStores(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}

	ownerRows, err := s.db.QueryContext(ctx,
		"SELECT o.store_id, o.owner_id FROM store_owner o JOIN store s ON s.id = o.store_id"+clause+
			" ORDER BY o.store_id, o.position", args...)
	if err != nil {
		return nil, err
	}
	defer ownerRows.Close()
	for ownerRows.Next() {
		var storeID, ownerID string
		if err := ownerRows.Scan(&storeID, &ownerID); err != nil {
			return nil, err
		}
		if i, ok := index[storeID]; ok {
			results[i].OwnerIDs = append(results[i].OwnerIDs, ownerID)
		}
	}
	return results, ownerRows.Err()
}

// scanStores drains rows into stores with empty owner lists, plus an id → position index.
func scanStores(rows *sql.Rows) ([]domain.Store, map[string]int, error) {
	defer rows.Close()
	results := []domain.Store{}
	index := map[string]int{}
	for rows.Next() {
		var e domain.Store
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Region, &e.Address, &e.Active, &e.PhoneNumber,
			&e.Email, &e.Latitude, &e.Longitude, &e.StoreType, &e.Rating, &e.DeliveryFee,
			&createdAt, &updatedAt); err != nil {
			return nil, nil, err
		}
		var err error
		if e.CreatedAt, err = time.Parse(dateLayout, createdAt); err != nil {
			return nil, nil, fmt.Errorf("store %s: created_at: %w", e.ID, err)
		}
		if e.UpdatedAt, err = time.Parse(dateLayout, updatedAt); err != nil {
			return nil, nil, fmt.Errorf("store %s: updated_at: %w", e.ID, err)
		}
		e.OwnerIDs = []string{}
		index[e.ID] = len(results)
		results = append(results, e)
	}
	return results, index, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
