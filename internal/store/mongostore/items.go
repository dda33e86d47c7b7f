package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
)

type ownerDoc struct {
	ID          string `bson:"id"`
	DisplayName string `bson:"user_name"`
	Email       string `bson:"email"`
}

type itemDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Weight    float64            `bson:"weight"`
	Image     string             `bson:"image"`
	Birthdate string             `bson:"birthdate"`
	Location  geo.Point          `bson:"location"`
	Owner     ownerDoc           `bson:"owner"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d *itemDoc) model() *model.Item {
	return &model.Item{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Weight:    d.Weight,
		Image:     d.Image,
		Birthdate: d.Birthdate,
		Location:  d.Location,
		Owner:     model.OwnerRef{ID: d.Owner.ID, DisplayName: d.Owner.DisplayName, Email: d.Owner.Email},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func newItemDoc(it *model.Item, now time.Time) itemDoc {
	return itemDoc{
		Name:      it.Name,
		Weight:    it.Weight,
		Image:     it.Image,
		Birthdate: it.Birthdate,
		Location:  geo.NewPoint(it.Location.Lat(), it.Location.Lng()),
		Owner:     ownerDoc{ID: it.Owner.ID, DisplayName: it.Owner.DisplayName, Email: it.Owner.Email},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// itemFilter matches an item by id and, unless ownerID is empty, owner.
// ok is false when id cannot be an ObjectID.
func itemFilter(id, ownerID string) (filter bson.M, ok bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	filter = bson.M{"_id": oid}
	if ownerID != "" {
		filter["owner.id"] = ownerID
	}
	return filter, true
}

// itemWithinFilter selects items located inside area.
func itemWithinFilter(area geo.Polygon) bson.M {
	return bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$geometry": bson.M{
					"type":        geo.TypePolygon,
					"coordinates": area.Coordinates,
				},
			},
		},
	}
}

// itemUpdate builds the $set document for the fields present in patch.
func itemUpdate(patch model.ItemPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Weight != nil {
		set["weight"] = *patch.Weight
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Birthdate != nil {
		set["birthdate"] = *patch.Birthdate
	}
	if patch.Location != nil {
		set["location"] = geo.NewPoint(patch.Location.Lat(), patch.Location.Lng())
	}
	if patch.Owner != nil {
		set["owner"] = ownerDoc{ID: patch.Owner.ID, DisplayName: patch.Owner.DisplayName, Email: patch.Owner.Email}
	}
	return bson.M{"$set": set}
}

func (s *Store) findItems(ctx context.Context, op string, filter bson.M) ([]model.Item, error) {
	cur, err := s.items.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var items []model.Item
	for cur.Next(ctx) {
		var d itemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding item: %w", err)
		}
		items = append(items, *d.model())
	}
	return items, cur.Err()
}

// ListItems returns all items.
func (s *Store) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.findItems(ctx, "listing items", bson.M{})
}

// ListItemsByOwner returns the items owned by an account.
func (s *Store) ListItemsByOwner(ctx context.Context, ownerID string) ([]model.Item, error) {
	return s.findItems(ctx, "listing items by owner", bson.M{"owner.id": ownerID})
}

// ListItemsWithin returns the items located inside area.
func (s *Store) ListItemsWithin(ctx context.Context, area geo.Polygon) ([]model.Item, error) {
	return s.findItems(ctx, "listing items by area", itemWithinFilter(area))
}

// GetItem retrieves an item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	filter, ok := itemFilter(id, "")
	if !ok {
		return nil, nil
	}

	var d itemDoc
	err := s.items.FindOne(ctx, filter).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return d.model(), nil
}

// CreateItem inserts a new item.
func (s *Store) CreateItem(ctx context.Context, it *model.Item) (*model.Item, error) {
	d := newItemDoc(it, time.Now().UTC())
	res, err := s.items.InsertOne(ctx, d)
	if dup := duplicate("name", err); dup != nil {
		return nil, dup
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	d.ID = res.InsertedID.(primitive.ObjectID)
	return d.model(), nil
}

// UpdateItem atomically applies patch to the matching item.
func (s *Store) UpdateItem(ctx context.Context, id, ownerID string, patch model.ItemPatch) (*model.Item, error) {
	filter, ok := itemFilter(id, ownerID)
	if !ok {
		return nil, nil
	}

	var d itemDoc
	err := s.items.FindOneAndUpdate(ctx, filter, itemUpdate(patch, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if dup := duplicate("name", err); dup != nil {
		return nil, dup
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	return d.model(), nil
}

// DeleteItem atomically removes the matching item and returns it.
func (s *Store) DeleteItem(ctx context.Context, id, ownerID string) (*model.Item, error) {
	filter, ok := itemFilter(id, ownerID)
	if !ok {
		return nil, nil
	}

	var d itemDoc
	err := s.items.FindOneAndDelete(ctx, filter).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deleting item: %w", err)
	}
	return d.model(), nil
}

// RefreshOwner rewrites the owner copy on every item of owner.ID.
func (s *Store) RefreshOwner(ctx context.Context, owner model.OwnerRef) error {
	_, err := s.items.UpdateMany(ctx,
		bson.M{"owner.id": owner.ID},
		bson.M{"$set": bson.M{"owner.user_name": owner.DisplayName, "owner.email": owner.Email}},
	)
	if err != nil {
		return fmt.Errorf("refreshing item owner: %w", err)
	}
	return nil
}
