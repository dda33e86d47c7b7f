package api

import (
	"context"
	"net/http"

	"github.com/erazemk/zemljevid/internal/service"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the REST surface.
type Deps struct {
	Items          *service.Items
	Accounts       *service.Accounts
	Verifier       Verifier
	Health         []Pinger
	MaxUploadBytes int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Accounts: d.Accounts}
	usersHandler := &UsersHandler{Accounts: d.Accounts}
	itemsHandler := &ItemsHandler{Items: d.Items, MaxUploadBytes: d.MaxUploadBytes}

	authMW := RequireIdentity(d.Verifier)

	mux.HandleFunc("GET /healthz", health(d.Health))

	// Public: login.
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Users: read and register (public), self-service and admin override.
	mux.HandleFunc("GET /api/v1/users", usersHandler.List)
	mux.HandleFunc("POST /api/v1/users", usersHandler.Create)
	mux.HandleFunc("GET /api/v1/users/{id}", usersHandler.Get)
	mux.Handle("GET /api/v1/users/token", authMW(http.HandlerFunc(usersHandler.CheckToken)))
	mux.Handle("PUT /api/v1/users", authMW(http.HandlerFunc(usersHandler.UpdateCurrent)))
	mux.Handle("DELETE /api/v1/users", authMW(http.HandlerFunc(usersHandler.DeleteCurrent)))
	mux.Handle("PUT /api/v1/users/admin/{id}", authMW(http.HandlerFunc(usersHandler.UpdateAsAdmin)))
	mux.Handle("DELETE /api/v1/users/admin/{id}", authMW(http.HandlerFunc(usersHandler.DeleteAsAdmin)))

	// Items: read (public), write (owner or admin).
	mux.HandleFunc("GET /api/v1/items", itemsHandler.List)
	mux.HandleFunc("GET /api/v1/items/area", itemsHandler.ListByArea)
	mux.HandleFunc("GET /api/v1/items/owner/{id}", itemsHandler.ListByOwner)
	mux.HandleFunc("GET /api/v1/items/{id}", itemsHandler.Get)
	mux.Handle("GET /api/v1/items/user", authMW(http.HandlerFunc(itemsHandler.ListCurrent)))
	mux.Handle("POST /api/v1/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/v1/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/v1/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("PUT /api/v1/items/admin/{id}", authMW(http.HandlerFunc(itemsHandler.UpdateAsAdmin)))
	mux.Handle("DELETE /api/v1/items/admin/{id}", authMW(http.HandlerFunc(itemsHandler.DeleteAsAdmin)))

	// Stored images and thumbnails.
	mux.HandleFunc("GET /api/v1/uploads/{key}", itemsHandler.Upload)

	// Unknown API routes get the envelope instead of the default text 404.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusNotFound, envelope{Message: "Not found - " + r.URL.Path})
	})

	return mux
}

func health(backends []Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, b := range backends {
			if err := b.Ping(r.Context()); err != nil {
				jsonResponse(w, http.StatusServiceUnavailable, envelope{Message: "unavailable"})
				return
			}
		}
		respond(w, http.StatusOK, "ok", nil)
	}
}
