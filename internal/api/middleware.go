package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/observability"
)

// Verifier resolves bearer tokens into identities.
type Verifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Identify resolves the request credential once and stores the identity
// in the request context. A missing credential yields the anonymous
// identity; a malformed or invalid one is rejected with 401.
func Identify(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := ResolveIdentity(r, v)
			if err != nil {
				jsonError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
		})
	}
}

// RequireIdentity is Identify that also rejects anonymous requests.
func RequireIdentity(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Identify(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.FromContext(r.Context()).Authenticated() {
				jsonError(w, r, fault.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// ResolveIdentity derives the caller of r from its Authorization header.
func ResolveIdentity(r *http.Request, v Verifier) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Anonymous, nil
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		return auth.Anonymous, fault.New(fault.CodeInvalidToken, "malformed authorization header")
	}
	ident, err := v.Verify(r.Context(), token)
	if err != nil {
		return auth.Anonymous, err
	}
	return ident, nil
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and
// duration, and records them in the request duration histogram.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		observability.HTTPRequestDuration.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		slog.Info("request", "method", r.Method, "path", r.URL.RequestURI(), "status", rec.status, "duration", elapsed.Round(time.Millisecond))
	})
}
