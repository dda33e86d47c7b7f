// Package mongostore implements the storage contracts on MongoDB. Item
// locations are GeoJSON points under a 2dsphere index, so area lookups use
// $geoWithin.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/erazemk/zemljevid/internal/store"
)

// Collection names.
const (
	itemsCollection    = "items"
	accountsCollection = "accounts"
	imagesCollection   = "images"
	settingsCollection = "settings"
)

// Store is the MongoDB storage backend.
type Store struct {
	client   *mongo.Client
	items    *mongo.Collection
	accounts *mongo.Collection
	images   *mongo.Collection
	settings *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, selects database and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	s := New(client, database)
	if err := s.Ping(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps a connected client.
func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		items:    db.Collection(itemsCollection),
		accounts: db.Collection(accountsCollection),
		images:   db.Collection(imagesCollection),
		settings: db.Collection(settingsCollection),
	}
}

// EnsureIndexes creates the geospatial and unique indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner.id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating item indexes: %w", err)
	}

	_, err = s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}
	return nil
}

// Ping checks the connection to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("pinging mongo: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func duplicate(field string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return &store.DuplicateError{Field: field, Err: err}
	}
	return nil
}

func noDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
