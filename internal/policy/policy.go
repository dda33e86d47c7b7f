// Package policy decides whether an identity may mutate a resource.
//
// Self-service checks compare the token subject with the recorded owner;
// account ids never change, so the token is trusted for that comparison.
// Admin-gated checks always re-fetch the account because a role can be
// revoked after a token was issued.
package policy

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/observability"
)

// AccountSource returns the current state of an account, or nil when it
// does not exist.
type AccountSource interface {
	Account(ctx context.Context, id string) (*model.Account, error)
}

// Decision is the outcome of an authorization check. The zero value allows.
type Decision struct {
	Reason fault.Code
	cause  error
}

// Allowed reports whether the mutation may proceed.
func (d Decision) Allowed() bool {
	return d.Reason == ""
}

// Err returns nil when allowed, otherwise the coded denial.
func (d Decision) Err() error {
	switch d.Reason {
	case "":
		return nil
	case fault.CodeUnauthenticated:
		return fault.ErrUnauthenticated
	case fault.CodeForbidden:
		return fault.ErrForbidden
	case fault.CodeAccountNotFound:
		return fault.ErrAccountNotFound
	case fault.CodeStorageFault:
		return fault.Storage(d.cause)
	default:
		return fault.New(d.Reason, string(d.Reason))
	}
}

func deny(reason fault.Code) Decision {
	return Decision{Reason: reason}
}

// Policy evaluates mutation requests.
type Policy struct {
	accounts AccountSource
}

// New returns a policy that re-fetches accounts from src for admin checks.
func New(src AccountSource) *Policy {
	return &Policy{accounts: src}
}

// AuthorizeMutation decides whether ident may mutate a resource owned by
// ownerID. With requireAdmin the owner is ignored and the caller's current
// role must be admin.
func (p *Policy) AuthorizeMutation(ctx context.Context, ident auth.Identity, ownerID string, requireAdmin bool) Decision {
	ctx, span := observability.Tracer("policy").Start(ctx, "policy.AuthorizeMutation")
	defer span.End()

	d := p.evaluate(ctx, ident, ownerID, requireAdmin)

	path := "self"
	if requireAdmin {
		path = "admin"
	}
	outcome := "allow"
	if !d.Allowed() {
		outcome = string(d.Reason)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(
		attribute.String("policy.path", path),
		attribute.String("policy.outcome", outcome),
		attribute.String("policy.subject", ident.SubjectID),
	)
	observability.PolicyDecisions.WithLabelValues(path, outcome).Inc()

	if !d.Allowed() {
		slog.Debug("mutation denied", "path", path, "reason", d.Reason, "subject", ident.SubjectID, "owner", ownerID)
	}
	return d
}

// Authorize is AuthorizeMutation returning an error.
func (p *Policy) Authorize(ctx context.Context, ident auth.Identity, ownerID string, requireAdmin bool) error {
	return p.AuthorizeMutation(ctx, ident, ownerID, requireAdmin).Err()
}

func (p *Policy) evaluate(ctx context.Context, ident auth.Identity, ownerID string, requireAdmin bool) Decision {
	if !ident.Authenticated() {
		return deny(fault.CodeUnauthenticated)
	}

	if requireAdmin {
		acc, err := p.accounts.Account(ctx, ident.SubjectID)
		if err != nil {
			if code := fault.CodeOf(err); code != fault.CodeStorageFault {
				return deny(code)
			}
			return Decision{Reason: fault.CodeStorageFault, cause: err}
		}
		if acc == nil {
			return deny(fault.CodeAccountNotFound)
		}
		if acc.Role != model.RoleAdmin {
			return deny(fault.CodeForbidden)
		}
		return Decision{}
	}

	if ident.SubjectID != ownerID {
		return deny(fault.CodeForbidden)
	}
	return Decision{}
}
