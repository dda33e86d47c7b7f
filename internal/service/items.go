// Package service is the resource access layer. Every mutation consults
// the ownership policy before it touches storage.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/identity"
	"github.com/erazemk/zemljevid/internal/imaging"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/observability"
	"github.com/erazemk/zemljevid/internal/policy"
	"github.com/erazemk/zemljevid/internal/store"
)

// ThumbnailSuffix is appended to an image key to address its thumbnail.
const ThumbnailSuffix = "_thumb"

// NewItem is the input for creating an item. Any owner the client
// supplies is ignored: the caller becomes the owner.
type NewItem struct {
	Name      string
	Weight    float64
	Birthdate string
	Location  geo.Point
	Image     io.Reader
}

// ItemUpdate is a partial item update. OwnerID requests an ownership
// transfer, which only the admin path may perform.
type ItemUpdate struct {
	Patch   model.ItemPatch
	OwnerID *string
	Image   io.Reader
}

// Items serves item reads and mutations.
type Items struct {
	items    store.Items
	images   store.Images
	accounts identity.Provider
	policy   *policy.Policy
	tracer   trace.Tracer
}

// NewItems wires the item service.
func NewItems(items store.Items, images store.Images, accounts identity.Provider, pol *policy.Policy) *Items {
	return &Items{
		items:    items,
		images:   images,
		accounts: accounts,
		policy:   pol,
		tracer:   observability.Tracer("service"),
	}
}

// List returns all items.
func (s *Items) List(ctx context.Context) ([]model.Item, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return s.withOwners(ctx, items), nil
}

// Get returns one item.
func (s *Items) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withOwner(ctx, item), nil
}

// ListByOwner returns the items owned by an account.
func (s *Items) ListByOwner(ctx context.Context, ownerID string) ([]model.Item, error) {
	items, err := s.items.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return s.withOwners(ctx, items), nil
}

// ListByArea returns the items inside the rectangle spanned by two
// "lat,lng" corners.
func (s *Items) ListByArea(ctx context.Context, topRight, bottomLeft string) ([]model.Item, error) {
	var missing []error
	if topRight == "" {
		missing = append(missing, fault.Field("topRight", "is required"))
	}
	if bottomLeft == "" {
		missing = append(missing, fault.Field("bottomLeft", "is required"))
	}
	if err := fault.Validation(missing...); err != nil {
		return nil, err
	}

	tr, err := geo.ParseLatLng(topRight)
	if err != nil {
		return nil, err
	}
	bl, err := geo.ParseLatLng(bottomLeft)
	if err != nil {
		return nil, err
	}
	area, err := geo.RectangleBounds(tr, bl)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListItemsWithin(ctx, area)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return s.withOwners(ctx, items), nil
}

// Upload returns a stored image by key. Thumbnails live under the image
// key plus ThumbnailSuffix.
func (s *Items) Upload(ctx context.Context, key string) ([]byte, string, error) {
	data, mime, err := s.images.GetImage(ctx, key)
	if err != nil {
		return nil, "", fault.Storage(err)
	}
	if data == nil {
		return nil, "", fault.New(fault.CodeResourceNotFound, "image not found")
	}
	return data, mime, nil
}

// Create stores a new item owned by the caller.
func (s *Items) Create(ctx context.Context, ident auth.Identity, in NewItem) (*model.Item, error) {
	ctx, span := s.tracer.Start(ctx, "items.Create")
	defer span.End()

	if !ident.Authenticated() {
		return nil, spanErr(span, fault.ErrUnauthenticated)
	}

	item := &model.Item{
		Name:      in.Name,
		Weight:    in.Weight,
		Birthdate: in.Birthdate,
		Location:  in.Location,
		Owner:     model.OwnerRef{ID: ident.SubjectID, DisplayName: ident.DisplayName, Email: ident.Email},
	}
	if err := item.Validate(); err != nil {
		return nil, spanErr(span, err)
	}

	if in.Image != nil {
		key, err := s.storeImage(ctx, in.Image)
		if err != nil {
			return nil, spanErr(span, err)
		}
		item.Image = key
	}

	created, err := s.items.CreateItem(ctx, item)
	if err != nil {
		s.dropImage(ctx, item.Image)
		return nil, spanErr(span, itemStoreError(err))
	}

	observability.ItemMutations.WithLabelValues("create").Inc()
	slog.Info("item created", "user", ident.DisplayName, "item", created.ID, "name", created.Name)
	return s.withOwner(ctx, created), nil
}

// Update applies a partial update. Without asAdmin only the owner may
// update and the owner cannot change; with asAdmin the caller's current
// role must be admin and ownership may be transferred.
func (s *Items) Update(ctx context.Context, ident auth.Identity, id string, upd ItemUpdate, asAdmin bool) (*model.Item, error) {
	ctx, span := s.tracer.Start(ctx, "items.Update", trace.WithAttributes(
		attribute.String("item.id", id),
		attribute.Bool("admin", asAdmin),
	))
	defer span.End()

	existing, err := s.authorize(ctx, ident, id, asAdmin)
	if err != nil {
		return nil, spanErr(span, err)
	}

	patch := upd.Patch
	patch.Owner = nil
	if upd.OwnerID != nil && *upd.OwnerID != existing.Owner.ID {
		if !asAdmin {
			return nil, spanErr(span, fault.New(fault.CodeForbidden, "only an administrator can change the owner"))
		}
		owner, err := s.accounts.Owner(ctx, *upd.OwnerID)
		if err != nil {
			return nil, spanErr(span, fault.From(err))
		}
		if owner == nil {
			return nil, spanErr(span, fault.ErrAccountNotFound)
		}
		patch.Owner = owner
	}
	if err := patch.Validate(); err != nil {
		return nil, spanErr(span, err)
	}

	if upd.Image != nil {
		key, err := s.storeImage(ctx, upd.Image)
		if err != nil {
			return nil, spanErr(span, err)
		}
		patch.Image = &key
	}
	if patch.Empty() {
		return s.withOwner(ctx, existing), nil
	}

	guard := existing.Owner.ID
	if asAdmin {
		guard = ""
	}
	updated, err := s.items.UpdateItem(ctx, id, guard, patch)
	if err != nil || updated == nil {
		if patch.Image != nil {
			s.dropImage(ctx, *patch.Image)
		}
		if err != nil {
			return nil, spanErr(span, itemStoreError(err))
		}
		// Deleted or transferred since it was loaded.
		return nil, spanErr(span, fault.ErrNotFound)
	}

	if patch.Image != nil && existing.Image != "" && existing.Image != *patch.Image {
		s.dropImage(ctx, existing.Image)
	}

	observability.ItemMutations.WithLabelValues("update").Inc()
	slog.Info("item updated", "user", ident.DisplayName, "item", id, "admin", asAdmin)
	return s.withOwner(ctx, updated), nil
}

// Delete removes an item, following the same rules as Update.
func (s *Items) Delete(ctx context.Context, ident auth.Identity, id string, asAdmin bool) (*model.Item, error) {
	ctx, span := s.tracer.Start(ctx, "items.Delete", trace.WithAttributes(
		attribute.String("item.id", id),
		attribute.Bool("admin", asAdmin),
	))
	defer span.End()

	existing, err := s.authorize(ctx, ident, id, asAdmin)
	if err != nil {
		return nil, spanErr(span, err)
	}

	guard := existing.Owner.ID
	if asAdmin {
		guard = ""
	}
	deleted, err := s.items.DeleteItem(ctx, id, guard)
	if err != nil {
		return nil, spanErr(span, fault.Storage(err))
	}
	if deleted == nil {
		return nil, spanErr(span, fault.ErrNotFound)
	}
	s.dropImage(ctx, deleted.Image)

	observability.ItemMutations.WithLabelValues("delete").Inc()
	slog.Info("item deleted", "user", ident.DisplayName, "item", id, "admin", asAdmin)
	return s.withOwner(ctx, deleted), nil
}

// authorize loads the target and runs the policy. The admin path is
// checked before the load so non-admins learn nothing about the target.
func (s *Items) authorize(ctx context.Context, ident auth.Identity, id string, asAdmin bool) (*model.Item, error) {
	if !ident.Authenticated() {
		return nil, fault.ErrUnauthenticated
	}
	if asAdmin {
		if err := s.policy.Authorize(ctx, ident, "", true); err != nil {
			return nil, err
		}
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !asAdmin {
		if err := s.policy.Authorize(ctx, ident, existing.Owner.ID, false); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func (s *Items) load(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if item == nil {
		return nil, fault.ErrNotFound
	}
	return item, nil
}

func (s *Items) storeImage(ctx context.Context, r io.Reader) (string, error) {
	img, err := imaging.Process(r)
	if errors.Is(err, imaging.ErrUnsupported) {
		return "", fault.Validation(fault.Field("image", "must be a JPEG or PNG image"))
	}
	if err != nil {
		return "", fault.Storage(err)
	}

	key := uuid.NewString()
	if err := s.images.PutImage(ctx, key, img.Data, img.MIME); err != nil {
		return "", fault.Storage(err)
	}
	if err := s.images.PutImage(ctx, key+ThumbnailSuffix, img.Thumbnail, img.MIME); err != nil {
		s.dropImage(ctx, key)
		return "", fault.Storage(err)
	}
	return key, nil
}

func (s *Items) dropImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	for _, k := range []string{key, key + ThumbnailSuffix} {
		if err := s.images.DeleteImage(ctx, k); err != nil {
			slog.Warn("deleting image", "key", k, "error", err)
		}
	}
}

// withOwners replaces the denormalized owner of each item with the
// account's current projection. The stored copy is kept when the account
// cannot be resolved.
func (s *Items) withOwners(ctx context.Context, items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	resolved := map[string]*model.OwnerRef{}
	for i := range items {
		id := items[i].Owner.ID
		owner, seen := resolved[id]
		if !seen {
			owner = s.resolveOwner(ctx, id)
			resolved[id] = owner
		}
		if owner != nil {
			items[i].Owner = *owner
		}
	}
	return items
}

func (s *Items) withOwner(ctx context.Context, item *model.Item) *model.Item {
	if owner := s.resolveOwner(ctx, item.Owner.ID); owner != nil {
		item.Owner = *owner
	}
	return item
}

func (s *Items) resolveOwner(ctx context.Context, id string) *model.OwnerRef {
	owner, err := s.accounts.Owner(ctx, id)
	if err != nil {
		slog.Warn("resolving item owner", "owner", id, "error", err)
		return nil
	}
	return owner
}

func itemStoreError(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return fault.Validation(fault.Field("name", "is already taken"))
	}
	return fault.Storage(err)
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(fault.CodeOf(err)))
	return err
}
