package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/identity"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/observability"
	"github.com/erazemk/zemljevid/internal/policy"
	"github.com/erazemk/zemljevid/internal/store"
)

// Accounts serves account reads, authentication and account mutations.
type Accounts struct {
	provider identity.Provider
	items    store.Items
	policy   *policy.Policy
	tracer   trace.Tracer
}

// NewAccounts wires the account service. items receives owner refreshes
// after display fields change.
func NewAccounts(provider identity.Provider, items store.Items, pol *policy.Policy) *Accounts {
	return &Accounts{
		provider: provider,
		items:    items,
		policy:   pol,
		tracer:   observability.Tracer("service"),
	}
}

// List returns all accounts.
func (s *Accounts) List(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.provider.ListAccounts(ctx)
	if err != nil {
		return nil, fault.From(err)
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	return accounts, nil
}

// Get returns one account.
func (s *Accounts) Get(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.provider.Account(ctx, id)
	if err != nil {
		return nil, fault.From(err)
	}
	if acc == nil {
		return nil, fault.ErrAccountNotFound
	}
	return acc, nil
}

// Register creates an account with the user role.
func (s *Accounts) Register(ctx context.Context, reg model.Registration) (*model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.Register")
	defer span.End()

	reg.DisplayName = strings.TrimSpace(reg.DisplayName)
	reg.Email = strings.TrimSpace(reg.Email)

	acc, err := s.provider.Register(ctx, reg)
	if err != nil {
		return nil, spanErr(span, fault.From(err))
	}
	slog.Info("account registered", "user", acc.DisplayName, "id", acc.ID)
	return acc, nil
}

// Login authenticates an email or display name with a password.
func (s *Accounts) Login(ctx context.Context, identifier, password string) (string, *model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.Login")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	var missing []error
	if identifier == "" {
		missing = append(missing, fault.Field("username", "is required"))
	}
	if password == "" {
		missing = append(missing, fault.Field("password", "is required"))
	}
	if err := fault.Validation(missing...); err != nil {
		return "", nil, spanErr(span, err)
	}

	token, acc, err := s.provider.Login(ctx, identifier, password)
	if err != nil {
		return "", nil, spanErr(span, fault.From(err))
	}
	return token, acc, nil
}

// CheckToken returns the current account behind a verified identity.
func (s *Accounts) CheckToken(ctx context.Context, ident auth.Identity) (*model.Account, error) {
	if !ident.Authenticated() {
		return nil, fault.ErrUnauthenticated
	}
	return s.Get(ctx, ident.SubjectID)
}

// UpdateSelf changes the caller's own account. The role cannot be changed
// this way.
func (s *Accounts) UpdateSelf(ctx context.Context, ident auth.Identity, changes model.AccountChanges) (*model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.UpdateSelf")
	defer span.End()

	if err := s.policy.Authorize(ctx, ident, ident.SubjectID, false); err != nil {
		return nil, spanErr(span, err)
	}
	if changes.Role != nil {
		return nil, spanErr(span, fault.New(fault.CodeForbidden, "only an administrator can change roles"))
	}
	return s.update(ctx, span, ident, ident.SubjectID, changes, false)
}

// UpdateAsAdmin changes any account, role included. The caller's current
// role must be admin.
func (s *Accounts) UpdateAsAdmin(ctx context.Context, ident auth.Identity, id string, changes model.AccountChanges) (*model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.UpdateAsAdmin", trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	if err := s.policy.Authorize(ctx, ident, id, true); err != nil {
		return nil, spanErr(span, err)
	}
	return s.update(ctx, span, ident, id, changes, true)
}

func (s *Accounts) update(ctx context.Context, span trace.Span, ident auth.Identity, id string, changes model.AccountChanges, asAdmin bool) (*model.Account, error) {
	if err := changes.Validate(); err != nil {
		return nil, spanErr(span, err)
	}
	if changes.Empty() {
		return s.Get(ctx, id)
	}

	acc, err := s.provider.UpdateAccount(ctx, ident, id, changes, asAdmin)
	if err != nil {
		return nil, spanErr(span, fault.From(err))
	}

	if changes.DisplayName != nil || changes.Email != nil {
		if err := s.items.RefreshOwner(ctx, acc.Owner()); err != nil {
			slog.Error("refreshing item owners", "account", acc.ID, "error", err)
		}
	}

	slog.Info("account updated", "user", ident.DisplayName, "account", acc.ID, "admin", asAdmin)
	return acc, nil
}

// DeleteSelf removes the caller's own account.
func (s *Accounts) DeleteSelf(ctx context.Context, ident auth.Identity) (*model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.DeleteSelf")
	defer span.End()

	if err := s.policy.Authorize(ctx, ident, ident.SubjectID, false); err != nil {
		return nil, spanErr(span, err)
	}
	return s.delete(ctx, span, ident, ident.SubjectID, false)
}

// DeleteAsAdmin removes any account. The caller's current role must be
// admin.
func (s *Accounts) DeleteAsAdmin(ctx context.Context, ident auth.Identity, id string) (*model.Account, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.DeleteAsAdmin", trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	if err := s.policy.Authorize(ctx, ident, id, true); err != nil {
		return nil, spanErr(span, err)
	}
	return s.delete(ctx, span, ident, id, true)
}

func (s *Accounts) delete(ctx context.Context, span trace.Span, ident auth.Identity, id string, asAdmin bool) (*model.Account, error) {
	acc, err := s.provider.DeleteAccount(ctx, ident, id, asAdmin)
	if err != nil {
		return nil, spanErr(span, fault.From(err))
	}
	slog.Info("account deleted", "user", ident.DisplayName, "account", acc.ID, "admin", asAdmin)
	return acc, nil
}
