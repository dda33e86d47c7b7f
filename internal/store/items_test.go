package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/zemljevid/internal/db"
	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	return NewSQLite(db.NewTestDB(t))
}

var (
	ana = model.OwnerRef{ID: "owner-a", DisplayName: "ana", Email: "ana@example.com"}
	bor = model.OwnerRef{ID: "owner-b", DisplayName: "bor", Email: "bor@example.com"}
)

func createItem(t *testing.T, s *SQLite, name string, owner model.OwnerRef, lat, lng float64) *model.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), &model.Item{
		Name:      name,
		Weight:    4,
		Image:     "img-" + name,
		Birthdate: "2020-01-01",
		Location:  geo.NewPoint(lat, lng),
		Owner:     owner,
	})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", name, err)
	}
	return item
}

func TestCreateAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := createItem(t, s, "Garfield", ana, 61.45, 23.75)
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Name != "Garfield" {
		t.Errorf("expected name 'Garfield', got %q", got.Name)
	}
	if got.Owner != ana {
		t.Errorf("expected owner %+v, got %+v", ana, got.Owner)
	}
	if got.Location.Lat() != 61.45 || got.Location.Lng() != 23.75 {
		t.Errorf("unexpected location %v", got.Location.Coordinates)
	}

	missing, err := s.GetItem(ctx, "nope")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}
}

func TestCreateItemDuplicateName(t *testing.T) {
	s := newTestStore(t)
	createItem(t, s, "Garfield", ana, 1, 1)

	_, err := s.CreateItem(context.Background(), &model.Item{
		Name: "Garfield", Weight: 1, Birthdate: "2020-01-01", Location: geo.NewPoint(2, 2), Owner: bor,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Field != "name" {
		t.Errorf("expected duplicate on name, got %v", err)
	}
}

func TestListItemsByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createItem(t, s, "A1", ana, 1, 1)
	createItem(t, s, "A2", ana, 1, 1)
	createItem(t, s, "B1", bor, 1, 1)

	all, _ := s.ListItems(ctx)
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}

	owned, err := s.ListItemsByOwner(ctx, ana.ID)
	if err != nil {
		t.Fatalf("ListItemsByOwner: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("expected 2 items for ana, got %d", len(owned))
	}
}

func TestListItemsWithin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createItem(t, s, "Inside", ana, 61.45, 23.75)
	createItem(t, s, "OnEdge", ana, 61.4, 23.75)
	createItem(t, s, "JustNorth", ana, 61.5001, 23.75)
	createItem(t, s, "Ljubljana", bor, 46.05, 14.5)

	area, err := geo.RectangleBounds(geo.LatLng{Lat: 61.5, Lng: 23.8}, geo.LatLng{Lat: 61.4, Lng: 23.7})
	if err != nil {
		t.Fatalf("RectangleBounds: %v", err)
	}

	items, err := s.ListItemsWithin(ctx, area)
	if err != nil {
		t.Fatalf("ListItemsWithin: %v", err)
	}

	names := map[string]bool{}
	for _, it := range items {
		names[it.Name] = true
	}
	if len(items) != 2 || !names["Inside"] || !names["OnEdge"] {
		t.Errorf("expected Inside and OnEdge, got %v", names)
	}
}

func TestUpdateItemPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := createItem(t, s, "Garfield", ana, 61.45, 23.75)

	w := 5.0
	updated, err := s.UpdateItem(ctx, item.ID, ana.ID, model.ItemPatch{Weight: &w})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Weight != 5 {
		t.Errorf("expected weight 5, got %v", updated.Weight)
	}
	if updated.Name != item.Name || updated.Image != item.Image || updated.Birthdate != item.Birthdate ||
		updated.Owner != item.Owner || updated.Location.Lat() != item.Location.Lat() {
		t.Errorf("unexpected changes to untouched fields: %+v", updated)
	}

	got, _ := s.GetItem(ctx, item.ID)
	if got.Weight != 5 {
		t.Errorf("expected stored weight 5, got %v", got.Weight)
	}
}

func TestUpdateItemOwnerGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := createItem(t, s, "Garfield", ana, 1, 1)

	name := "Odie"
	got, err := s.UpdateItem(ctx, item.ID, bor.ID, model.ItemPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got != nil {
		t.Error("expected no match for the wrong owner")
	}

	stored, _ := s.GetItem(ctx, item.ID)
	if stored.Name != "Garfield" {
		t.Errorf("expected name unchanged, got %q", stored.Name)
	}

	// Empty owner matches any owner.
	got, err = s.UpdateItem(ctx, item.ID, "", model.ItemPatch{Owner: &bor})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Owner != bor {
		t.Errorf("expected owner %+v, got %+v", bor, got.Owner)
	}
}

func TestUpdateItemDuplicateName(t *testing.T) {
	s := newTestStore(t)
	createItem(t, s, "Garfield", ana, 1, 1)
	other := createItem(t, s, "Odie", ana, 1, 1)

	name := "Garfield"
	_, err := s.UpdateItem(context.Background(), other.ID, "", model.ItemPatch{Name: &name})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := createItem(t, s, "Delete Me", ana, 1, 1)

	if got, _ := s.DeleteItem(ctx, item.ID, bor.ID); got != nil {
		t.Error("expected no match for the wrong owner")
	}

	deleted, err := s.DeleteItem(ctx, item.ID, ana.ID)
	if err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if deleted == nil || deleted.ID != item.ID {
		t.Fatalf("expected deleted item to be returned, got %+v", deleted)
	}

	// Deletion is physical.
	if got, _ := s.GetItem(ctx, item.ID); got != nil {
		t.Error("expected item to be gone")
	}
}

func TestRefreshOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := createItem(t, s, "Garfield", ana, 1, 1)
	renamed := model.OwnerRef{ID: ana.ID, DisplayName: "ana2", Email: "ana2@example.com"}

	if err := s.RefreshOwner(ctx, renamed); err != nil {
		t.Fatalf("RefreshOwner: %v", err)
	}
	got, _ := s.GetItem(ctx, item.ID)
	if got.Owner != renamed {
		t.Errorf("expected owner %+v, got %+v", renamed, got.Owner)
	}
}
