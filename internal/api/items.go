package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/service"
)

// DefaultMaxUploadBytes limits item request bodies, image included.
const DefaultMaxUploadBytes = 5 << 20

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	Items          *service.Items
	MaxUploadBytes int64
}

// itemRequest is the body of item create and update requests, sent either
// as JSON or as a multipart form with an optional "image" file.
type itemRequest struct {
	Name      *string    `json:"name"`
	Weight    *float64   `json:"weight"`
	Birthdate *string    `json:"birthdate"`
	Location  *geo.Point `json:"location"`
	Owner     *string    `json:"owner"`

	image multipart.File
}

func (req *itemRequest) close() {
	if req.image != nil {
		req.image.Close()
	}
}

func (req *itemRequest) imageReader() io.Reader {
	if req.image == nil {
		return nil
	}
	return req.image
}

// List handles GET /api/v1/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.List(r.Context())
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Items found", items)
}

// Get handles GET /api/v1/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Items.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Item found", item)
}

// ListByArea handles GET /api/v1/items/area?topRight=lat,lng&bottomLeft=lat,lng.
func (h *ItemsHandler) ListByArea(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Items.ListByArea(r.Context(), q.Get("topRight"), q.Get("bottomLeft"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Items found", items)
}

// ListCurrent handles GET /api/v1/items/user.
func (h *ItemsHandler) ListCurrent(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.ListByOwner(r.Context(), auth.FromContext(r.Context()).SubjectID)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Items found", items)
}

// ListByOwner handles GET /api/v1/items/owner/{id}.
func (h *ItemsHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.ListByOwner(r.Context(), r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Items found", items)
}

// Create handles POST /api/v1/items. Any owner in the body is ignored.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.readItem(w, r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	defer req.close()

	in := service.NewItem{Image: req.imageReader()}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Weight != nil {
		in.Weight = *req.Weight
	}
	if req.Birthdate != nil {
		in.Birthdate = *req.Birthdate
	}
	if req.Location != nil {
		in.Location = *req.Location
	}

	item, err := h.Items.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Item created", item)
}

// Update handles PUT /api/v1/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// UpdateAsAdmin handles PUT /api/v1/items/admin/{id}.
func (h *ItemsHandler) UpdateAsAdmin(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *ItemsHandler) update(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	req, err := h.readItem(w, r)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	defer req.close()

	upd := service.ItemUpdate{
		Patch: model.ItemPatch{
			Name:      req.Name,
			Weight:    req.Weight,
			Birthdate: req.Birthdate,
			Location:  req.Location,
		},
		OwnerID: req.Owner,
		Image:   req.imageReader(),
	}

	item, err := h.Items.Update(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"), upd, asAdmin)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Item updated", item)
}

// Delete handles DELETE /api/v1/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, false)
}

// DeleteAsAdmin handles DELETE /api/v1/items/admin/{id}.
func (h *ItemsHandler) DeleteAsAdmin(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, true)
}

func (h *ItemsHandler) delete(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	item, err := h.Items.Delete(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"), asAdmin)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Item deleted", item)
}

// Upload handles GET /api/v1/uploads/{key}.
func (h *ItemsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.Items.Upload(r.Context(), r.PathValue("key"))
	if err != nil {
		jsonError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// readItem decodes a JSON or multipart item body.
func (h *ItemsHandler) readItem(w http.ResponseWriter, r *http.Request) (*itemRequest, error) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req itemRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fault.Validation(fault.Field("body", "file too large or invalid multipart form"))
	}
	return parseItemForm(r)
}

func parseItemForm(r *http.Request) (*itemRequest, error) {
	var req itemRequest
	var errs []error

	if v, ok := formValue(r, "name"); ok {
		req.Name = &v
	}
	if v, ok := formValue(r, "birthdate"); ok {
		req.Birthdate = &v
	}
	if v, ok := formValue(r, "owner"); ok {
		req.Owner = &v
	}
	if v, ok := formValue(r, "weight"); ok {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fault.Field("weight", "must be a number"))
		} else {
			req.Weight = &w
		}
	}

	if v, ok := formValue(r, "location"); ok {
		var p geo.Point
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			errs = append(errs, fault.Field("location", "must be a GeoJSON point"))
		} else {
			req.Location = &p
		}
	} else if v, ok := formValue(r, "coordinates"); ok {
		ll, err := geo.ParseLatLng(v)
		p := geo.NewPoint(ll.Lat, ll.Lng)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			errs = append(errs, fault.Field("coordinates", "must be a \"lat,lng\" pair within range"))
		} else {
			req.Location = &p
		}
	}

	if err := fault.Validation(errs...); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		req.image = file
	case errors.Is(err, http.ErrMissingFile):
	default:
		return nil, fault.Validation(fault.Field("image", "could not be read"))
	}
	return &req, nil
}

func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}
