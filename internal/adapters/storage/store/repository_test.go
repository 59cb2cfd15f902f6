package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefinder/internal/adapters/storage"
	storeRepo "storefinder/internal/adapters/storage/store"
	domain "storefinder/internal/domain/store"
)

var base = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func sample(id, email string, offset int) domain.Store {
	return domain.Store{
		ID:          id,
		Name:        "Store " + id,
		Region:      "Leinster",
		Address:     "1 Main St",
		Active:      true,
		PhoneNumber: "+353 1 555",
		Email:       email,
		OwnerIDs:    []string{},
		Latitude:    53.35,
		Longitude:   -6.26,
		StoreType:   "grocery",
		Rating:      4,
		DeliveryFee: 250,
		CreatedAt:   base.Add(time.Duration(offset) * time.Minute),
		UpdatedAt:   base.Add(time.Duration(offset) * time.Minute),
	}
}

func newSQLiteRepo(t *testing.T) storeRepo.Repository {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.MigrateDB(context.Background(), db))
	return storeRepo.NewSQLiteStore(storage.NewTimedDB(db, nil, 0))
}

func newMemoryRepo(t *testing.T) storeRepo.Repository {
	return storeRepo.NewMemoryStore()
}

// newMongoRepo runs against a real server only when STORES_TEST_MONGO_URI is set.
func newMongoRepo(t *testing.T) storeRepo.Repository {
	t.Helper()
	uri := os.Getenv("STORES_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STORES_TEST_MONGO_URI not set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	ctx := context.Background()
	db := client.Database("storefinder_test_" + time.Now().Format("150405.000000000"))
	t.Cleanup(func() {
		db.Drop(ctx)
		client.Disconnect(ctx)
	})
	repo := storeRepo.NewMongoStore(db)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

var backends = []struct {
	name string
	open func(t *testing.T) storeRepo.Repository
}{
	{"sqlite", newSQLiteRepo},
	{"memory", newMemoryRepo},
	{"mongo", newMongoRepo},
}

func TestRepository_RoundTrip(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()
			s := sample("s1", "one@example.com", 0)
			s.OwnerIDs = []string{"o2", "o1"}
			require.NoError(t, repo.Save(ctx, s))

			got, err := repo.GetByID(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, s.Name, got.Name)
			assert.Equal(t, s.DeliveryFee, got.DeliveryFee)
			assert.Equal(t, []string{"o2", "o1"}, got.OwnerIDs, "owner order must survive storage")
			assert.True(t, s.CreatedAt.Equal(got.CreatedAt))

			byEmail, err := repo.GetByEmail(ctx, "one@example.com")
			require.NoError(t, err)
			assert.Equal(t, "s1", byEmail.ID)
		})
	}
}

func TestRepository_NotFound(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()

			_, err := repo.GetByID(ctx, "missing")
			assert.True(t, errors.Is(err, domain.ErrNotFound), "GetByID: %v", err)
			_, err = repo.GetByEmail(ctx, "nobody@example.com")
			assert.True(t, errors.Is(err, domain.ErrNotFound), "GetByEmail: %v", err)
			err = repo.Delete(ctx, "missing")
			assert.True(t, errors.Is(err, domain.ErrNotFound), "Delete: %v", err)
		})
	}
}

func TestRepository_SaveReplacesOwners(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()
			s := sample("s1", "one@example.com", 0)
			s.OwnerIDs = []string{"o1", "o2", "o3"}
			require.NoError(t, repo.Save(ctx, s))

			s.OwnerIDs = []string{"o3"}
			s.Name = "Renamed"
			require.NoError(t, repo.Save(ctx, s))

			got, err := repo.GetByID(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Name)
			assert.Equal(t, []string{"o3"}, got.OwnerIDs)
		})
	}
}

func TestRepository_EmailTaken(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, sample("s1", "dup@example.com", 0)))

			err := repo.Save(ctx, sample("s2", "dup@example.com", 1))
			assert.True(t, errors.Is(err, domain.ErrEmailTaken), "got %v", err)

			// Re-saving the holder of the email is fine.
			assert.NoError(t, repo.Save(ctx, sample("s1", "dup@example.com", 0)))
		})
	}
}

func TestRepository_Listings(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()

			a := sample("a", "a@example.com", 0)
			a.OwnerIDs = []string{"alice"}
			bb := sample("b", "b@example.com", 1)
			bb.Active = false
			bb.OwnerIDs = []string{"bob", "alice"}
			c := sample("c", "c@example.com", 2)
			for _, s := range []domain.Store{c, a, bb} {
				require.NoError(t, repo.Save(ctx, s))
			}

			all, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids(all))

			active, err := repo.ListActive(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, ids(active))

			owned, err := repo.ListByOwner(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(owned))
			assert.Equal(t, []string{"bob", "alice"}, owned[1].OwnerIDs)

			none, err := repo.ListByOwner(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			ctx := context.Background()
			s := sample("s1", "one@example.com", 0)
			s.OwnerIDs = []string{"o1"}
			require.NoError(t, repo.Save(ctx, s))

			require.NoError(t, repo.Delete(ctx, "s1"))
			_, err := repo.GetByID(ctx, "s1")
			assert.True(t, errors.Is(err, domain.ErrNotFound))

			owned, err := repo.ListByOwner(ctx, "o1")
			require.NoError(t, err)
			assert.Empty(t, owned)
		})
	}
}

func TestSQLiteStore_CorruptTimestamp(t *testing.T) {
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	require.NoError(t, storage.MigrateDB(ctx, db))
	repo := storeRepo.NewSQLiteStore(db)

	require.NoError(t, repo.Save(ctx, sample("s1", "one@example.com", 0)))
	_, err = db.Exec(`UPDATE store SET updated_at = 'last tuesday' WHERE id = 's1'`)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, "s1")
	assert.ErrorContains(t, err, "updated_at")
	assert.False(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.List(ctx)
	assert.Error(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	repo := storeRepo.NewMemoryStore()
	ctx := context.Background()
	s := sample("s1", "one@example.com", 0)
	s.OwnerIDs = []string{"o1"}
	require.NoError(t, repo.Save(ctx, s))

	s.OwnerIDs[0] = "mutated"
	got, _ := repo.GetByID(ctx, "s1")
	got.OwnerIDs[0] = "also-mutated"

	again, _ := repo.GetByID(ctx, "s1")
	assert.Equal(t, []string{"o1"}, again.OwnerIDs)
}

func ids(list []domain.Store) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}
