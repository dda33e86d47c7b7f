package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
)

const itemColumns = `id, name, weight, image, birthdate, lng, lat, owner_id, owner_name, owner_email, created_at, updated_at`

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var lng, lat float64
	err := row.Scan(&item.ID, &item.Name, &item.Weight, &item.Image, &item.Birthdate, &lng, &lat,
		&item.Owner.ID, &item.Owner.DisplayName, &item.Owner.Email,
		sqlTime{&item.CreatedAt}, sqlTime{&item.UpdatedAt})
	if err != nil {
		return nil, err
	}
	item.Location = geo.NewPoint(lat, lng)
	return item, nil
}

func (s *SQLite) queryItems(ctx context.Context, op, query string, args ...any) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListItems returns all items.
func (s *SQLite) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.queryItems(ctx, "listing items",
		`SELECT `+itemColumns+` FROM items ORDER BY name`)
}

// GetItem returns an item by ID.
func (s *SQLite) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByOwner returns all items owned by an account.
func (s *SQLite) ListItemsByOwner(ctx context.Context, ownerID string) ([]model.Item, error) {
	return s.queryItems(ctx, "listing items by owner",
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY name`, ownerID)
}

// ListItemsWithin returns items located inside area. The index narrows the
// scan to the polygon's bounding box before the exact containment test.
func (s *SQLite) ListItemsWithin(ctx context.Context, area geo.Polygon) ([]model.Item, error) {
	minLng, minLat, maxLng, maxLat := area.Bounds()
	candidates, err := s.queryItems(ctx, "listing items by area",
		`SELECT `+itemColumns+` FROM items
		 WHERE lng BETWEEN ? AND ? AND lat BETWEEN ? AND ?
		 ORDER BY name`,
		minLng, maxLng, minLat, maxLat,
	)
	if err != nil {
		return nil, err
	}

	var items []model.Item
	for _, item := range candidates {
		if geo.Contains(area, item.Location) {
			items = append(items, item)
		}
	}
	return items, nil
}

// CreateItem inserts a new item and returns it as stored.
func (s *SQLite) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	created, err := scanItem(s.db.QueryRowContext(ctx,
		`INSERT INTO items (id, name, weight, image, birthdate, lng, lat, owner_id, owner_name, owner_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+itemColumns,
		uuid.NewString(), item.Name, item.Weight, item.Image, item.Birthdate,
		item.Location.Lng(), item.Location.Lat(),
		item.Owner.ID, item.Owner.DisplayName, item.Owner.Email,
	))
	if isUniqueViolation(err) {
		return nil, &DuplicateError{Field: "name", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return created, nil
}

// UpdateItem applies the fields present in patch in a single statement.
func (s *SQLite) UpdateItem(ctx context.Context, id, ownerID string, patch model.ItemPatch) (*model.Item, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Weight != nil {
		set("weight", *patch.Weight)
	}
	if patch.Image != nil {
		set("image", *patch.Image)
	}
	if patch.Birthdate != nil {
		set("birthdate", *patch.Birthdate)
	}
	if patch.Location != nil {
		set("lng", patch.Location.Lng())
		set("lat", patch.Location.Lat())
	}
	if patch.Owner != nil {
		set("owner_id", patch.Owner.ID)
		set("owner_name", patch.Owner.DisplayName)
		set("owner_email", patch.Owner.Email)
	}

	query := `UPDATE items SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` RETURNING ` + itemColumns

	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, &DuplicateError{Field: "name", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item.
func (s *SQLite) DeleteItem(ctx context.Context, id, ownerID string) (*model.Item, error) {
	query := `DELETE FROM items WHERE id = ?`
	args := []any{id}
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, query+` RETURNING `+itemColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deleting item: %w", err)
	}
	return item, nil
}

// RefreshOwner updates the owner fields copied into items.
func (s *SQLite) RefreshOwner(ctx context.Context, owner model.OwnerRef) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE items SET owner_name = ?, owner_email = ? WHERE owner_id = ?`,
		owner.DisplayName, owner.Email, owner.ID,
	)
	if err != nil {
		return fmt.Errorf("refreshing item owner: %w", err)
	}
	return nil
}
