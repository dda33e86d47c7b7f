package api

import (
	"net/http"

	"github.com/erazemk/zemljevid/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Accounts *service.Accounts
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login. The username may be an email
// address or a display name.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	token, acc, err := h.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	respond(w, http.StatusOK, "Login successful", map[string]any{
		"token": token,
		"user":  acc,
	})
}
