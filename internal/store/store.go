// Package store defines the storage contracts and implements them on
// SQLite. Lookups return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"errors"

	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
)

// ErrDuplicate is matched by errors.Is for unique constraint violations.
var ErrDuplicate = errors.New("duplicate key")

// DuplicateError reports which unique field a write collided on.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Field
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Items persists items.
type Items interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID string) ([]model.Item, error)
	// ListItemsWithin returns items whose location lies inside or on the
	// polygon.
	ListItemsWithin(ctx context.Context, area geo.Polygon) ([]model.Item, error)
	CreateItem(ctx context.Context, item *model.Item) (*model.Item, error)
	// UpdateItem atomically applies patch to the item with the given id
	// and, unless ownerID is empty, the given owner. It returns nil when
	// nothing matched.
	UpdateItem(ctx context.Context, id, ownerID string, patch model.ItemPatch) (*model.Item, error)
	// DeleteItem atomically removes the matching item and returns it, or
	// nil when nothing matched.
	DeleteItem(ctx context.Context, id, ownerID string) (*model.Item, error)
	// RefreshOwner rewrites the denormalized owner fields of every item
	// owned by owner.ID.
	RefreshOwner(ctx context.Context, owner model.OwnerRef) error
}

// Accounts persists owner accounts.
type Accounts interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	FindAccountsByName(ctx context.Context, name string) ([]model.Account, error)
	CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) (*model.Account, error)
	CountAccounts(ctx context.Context) (int, error)
}

// Images stores processed image bytes by key.
type Images interface {
	PutImage(ctx context.Context, key string, data []byte, mime string) error
	// GetImage returns nil data when the key does not exist.
	GetImage(ctx context.Context, key string) ([]byte, string, error)
	DeleteImage(ctx context.Context, key string) error
}

// Settings persists server settings.
type Settings interface {
	// JWTSecret returns the persisted signing secret, creating it on
	// first use.
	JWTSecret(ctx context.Context) (string, error)
}

// Store is a complete storage backend.
type Store interface {
	Items
	Accounts
	Images
	Settings
	Ping(ctx context.Context) error
	Close() error
}
