package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/zemljevid/internal/store"
)

type imageDoc struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
	Mime string `bson:"mime"`
}

// PutImage stores image bytes under key, replacing any previous image.
func (s *Store) PutImage(ctx context.Context, key string, data []byte, mime string) error {
	_, err := s.images.ReplaceOne(ctx, bson.M{"_id": key},
		imageDoc{Key: key, Data: data, Mime: mime},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// GetImage retrieves image bytes and their MIME type.
func (s *Store) GetImage(ctx context.Context, key string) ([]byte, string, error) {
	var d imageDoc
	err := s.images.FindOne(ctx, bson.M{"_id": key}).Decode(&d)
	if noDocuments(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return d.Data, d.Mime, nil
}

// DeleteImage removes an image. Missing keys are ignored.
func (s *Store) DeleteImage(ctx context.Context, key string) error {
	if _, err := s.images.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// JWTSecret upserts a candidate with $setOnInsert and reads back whichever
// value won.
func (s *Store) JWTSecret(ctx context.Context) (string, error) {
	candidate, err := store.NewSecret()
	if err != nil {
		return "", err
	}

	_, err = s.settings.UpdateOne(ctx,
		bson.M{"_id": "jwt_secret"},
		bson.M{"$setOnInsert": bson.M{"value": candidate}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var doc struct {
		Value string `bson:"value"`
	}
	if err := s.settings.FindOne(ctx, bson.M{"_id": "jwt_secret"}).Decode(&doc); err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	return doc.Value, nil
}
