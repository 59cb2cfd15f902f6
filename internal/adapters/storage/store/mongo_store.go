package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	domain "storefinder/internal/domain/store"
)

// CollectionName is the MongoDB collection holding store documents.
const CollectionName = "stores"

// Compile-time interface check.
var _ Repository = (*MongoStore)(nil)

// storeDocument is the BSON shape of a store.
type storeDocument struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Region      string    `bson:"region"`
	Address     string    `bson:"address"`
	Active      bool      `bson:"active"`
	PhoneNumber string    `bson:"phone_number"`
	Email       string    `bson:"email"`
	OwnerIDs    []string  `bson:"owner_ids"`
	Latitude    float64   `bson:"latitude"`
	Longitude   float64   `bson:"longitude"`
	StoreType   string    `bson:"store_type"`
	Rating      int       `bson:"rating"`
	DeliveryFee int64     `bson:"delivery_fee"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toDocument(s domain.Store) storeDocument {
	owners := slices.Clone(s.OwnerIDs)
	if owners == nil {
		owners = []string{}
	}
	return storeDocument{
		ID: s.ID, Name: s.Name, Region: s.Region, Address: s.Address, Active: s.Active,
		PhoneNumber: s.PhoneNumber, Email: s.Email, OwnerIDs: owners,
		Latitude: s.Latitude, Longitude: s.Longitude, StoreType: s.StoreType,
		Rating: s.Rating, DeliveryFee: s.DeliveryFee,
		CreatedAt: s.CreatedAt.UTC(), UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func (d storeDocument) toDomain() domain.Store {
	owners := d.OwnerIDs
	if owners == nil {
		owners = []string{}
	}
	return domain.Store{
		ID: d.ID, Name: d.Name, Region: d.Region, Address: d.Address, Active: d.Active,
		PhoneNumber: d.PhoneNumber, Email: d.Email, OwnerIDs: owners,
		Latitude: d.Latitude, Longitude: d.Longitude, StoreType: d.StoreType,
		Rating: d.Rating, DeliveryFee: d.DeliveryFee,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// MongoStore implements Repository on a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps the stores collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// Migrate creates the owner multikey index and the unique email index.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_ids", Value: 1}}},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: migrate %s indexes: %w", CollectionName, err)
	}
	return nil
}

// GetByID retrieves a Store by its ID.
func (s *MongoStore) GetByID(ctx context.Context, id string) (domain.Store, error) {
	return s.findOne(ctx, bson.M{"_id": id}, id)
}

// GetByEmail retrieves a Store by email.
func (s *MongoStore) GetByEmail(ctx context.Context, email string) (domain.Store, error) {
	return s.findOne(ctx, bson.M{"email": email}, email)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, key string) (domain.Store, error) {
	var doc storeDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Store{}, fmt.Errorf("store %s: %w", key, domain.ErrNotFound)
		}
		return domain.Store{}, fmt.Errorf("mongo: get store: %w", err)
	}
	return doc.toDomain(), nil
}

// Save upserts the whole document, owner list included.
// POST: domain.ErrEmailTaken when the unique email index rejects the write
func (s *MongoStore) Save(ctx context.Context, st domain.Store) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": st.ID}, toDocument(st), options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("email %s: %w", st.Email, domain.ErrEmailTaken)
		}
		return fmt.Errorf("mongo: save store: %w", err)
	}
	return nil
}

// Delete removes a Store.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: delete store: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns all stores ordered by creation time.
func (s *MongoStore) List(ctx context.Context) ([]domain.Store, error) {
	return s.find(ctx, bson.M{})
}

// ListActive returns active stores ordered by creation time.
func (s *MongoStore) ListActive(ctx context.Context) ([]domain.Store, error) {
	return s.find(ctx, bson.M{"active": true})
}

// ListByOwner matches ownerID against the owner_ids multikey index.
func (s *MongoStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error) {
	return s.find(ctx, bson.M{"owner_ids": ownerID})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]domain.Store, error) {
	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list stores: %w", err)
	}
	var docs []storeDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: list stores: %w", err)
	}
	out := make([]domain.Store, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
