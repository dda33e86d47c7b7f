package auth

import (
	"context"
	"strings"
)

// Identity is the caller of a single request, derived once from its
// credential and never modified afterwards.
type Identity struct {
	SubjectID         string
	DisplayName       string
	Email             string
	Role              string
	CredentialPresent bool
	Token             string
}

// Anonymous is the identity of a request without a usable credential.
var Anonymous = Identity{}

// Authenticated reports whether a verified credential backs the identity.
func (i Identity) Authenticated() bool {
	return i.CredentialPresent && i.SubjectID != ""
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying ident.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	ident, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return Anonymous
	}
	return ident
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
