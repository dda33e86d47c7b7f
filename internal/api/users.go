package api

import (
	"net/http"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/service"
)

// UsersHandler handles owner account endpoints.
type UsersHandler struct {
	Accounts *service.Accounts
}

// List handles GET /api/v1/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.List(r.Context())
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Users found", accounts)
}

// Get handles GET /api/v1/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User found", acc)
}

// Create handles POST /api/v1/users. New accounts always get the user role.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeJSON(r, &reg); err != nil {
		jsonError(w, r, err)
		return
	}

	acc, err := h.Accounts.Register(r.Context(), reg)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "User created", acc)
}

// CheckToken handles GET /api/v1/users/token.
func (h *UsersHandler) CheckToken(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.CheckToken(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Token valid", acc)
}

// UpdateCurrent handles PUT /api/v1/users.
func (h *UsersHandler) UpdateCurrent(w http.ResponseWriter, r *http.Request) {
	var changes model.AccountChanges
	if err := decodeJSON(r, &changes); err != nil {
		jsonError(w, r, err)
		return
	}

	acc, err := h.Accounts.UpdateSelf(r.Context(), auth.FromContext(r.Context()), changes)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User updated", acc)
}

// DeleteCurrent handles DELETE /api/v1/users.
func (h *UsersHandler) DeleteCurrent(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.DeleteSelf(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User deleted", acc)
}

// UpdateAsAdmin handles PUT /api/v1/users/admin/{id}.
func (h *UsersHandler) UpdateAsAdmin(w http.ResponseWriter, r *http.Request) {
	var changes model.AccountChanges
	if err := decodeJSON(r, &changes); err != nil {
		jsonError(w, r, err)
		return
	}

	acc, err := h.Accounts.UpdateAsAdmin(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"), changes)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User updated", acc)
}

// DeleteAsAdmin handles DELETE /api/v1/users/admin/{id}.
func (h *UsersHandler) DeleteAsAdmin(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.DeleteAsAdmin(r.Context(), auth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "User deleted", acc)
}
