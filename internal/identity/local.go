package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/store"
)

var errBadCredentials = fault.New(fault.CodeInvalidCredentials, "invalid credentials")

// Local manages accounts in the application's own store.
type Local struct {
	accounts store.Accounts
	hasher   *auth.Hasher
	tokens   *auth.Tokens
}

var _ Provider = (*Local)(nil)

// NewLocal returns a provider backed by accounts.
func NewLocal(accounts store.Accounts, hasher *auth.Hasher, tokens *auth.Tokens) *Local {
	return &Local{accounts: accounts, hasher: hasher, tokens: tokens}
}

// Login accepts an email address or a display name. A display name shared
// by several accounts is refused like any other bad credential.
func (l *Local) Login(ctx context.Context, identifier, password string) (string, *model.Account, error) {
	acc, err := l.lookup(ctx, identifier)
	if err != nil {
		return "", nil, fault.Storage(err)
	}

	hash := ""
	if acc != nil {
		hash = acc.PasswordHash
	}
	if !l.hasher.Compare(hash, password) {
		slog.Warn("login failed", "identifier", identifier)
		return "", nil, errBadCredentials
	}

	token, err := l.tokens.Issue(acc)
	if err != nil {
		return "", nil, fault.Storage(err)
	}

	slog.Info("user logged in", "user", acc.DisplayName, "role", acc.Role)
	return token, acc, nil
}

func (l *Local) lookup(ctx context.Context, identifier string) (*model.Account, error) {
	if strings.Contains(identifier, "@") {
		acc, err := l.accounts.GetAccountByEmail(ctx, identifier)
		if err != nil || acc != nil {
			return acc, err
		}
	}
	found, err := l.accounts.FindAccountsByName(ctx, identifier)
	if err != nil || len(found) != 1 {
		return nil, err
	}
	return &found[0], nil
}

// Verify checks the token signature only.
func (l *Local) Verify(_ context.Context, token string) (auth.Identity, error) {
	return l.tokens.Verify(token)
}

// Account reads an account from the store.
func (l *Local) Account(ctx context.Context, id string) (*model.Account, error) {
	acc, err := l.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return acc, nil
}

// Owner returns the public projection of an account.
func (l *Local) Owner(ctx context.Context, id string) (*model.OwnerRef, error) {
	acc, err := l.Account(ctx, id)
	if err != nil || acc == nil {
		return nil, err
	}
	owner := acc.Owner()
	return &owner, nil
}

// ListAccounts returns all accounts.
func (l *Local) ListAccounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := l.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return accounts, nil
}

// Register creates a regular user account.
func (l *Local) Register(ctx context.Context, reg model.Registration) (*model.Account, error) {
	return l.create(ctx, reg, model.RoleUser)
}

// CreateAdmin creates an administrator account. Used for bootstrapping.
func (l *Local) CreateAdmin(ctx context.Context, reg model.Registration) (*model.Account, error) {
	return l.create(ctx, reg, model.RoleAdmin)
}

func (l *Local) create(ctx context.Context, reg model.Registration, role string) (*model.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	hash, err := l.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fault.Storage(err)
	}

	acc, err := l.accounts.CreateAccount(ctx, &model.Account{
		DisplayName:  reg.DisplayName,
		Email:        reg.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, storeError(err)
	}
	return acc, nil
}

// UpdateAccount applies changes, hashing a new password.
func (l *Local) UpdateAccount(ctx context.Context, _ auth.Identity, id string, changes model.AccountChanges, _ bool) (*model.Account, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	patch := model.AccountPatch{
		DisplayName: changes.DisplayName,
		Email:       changes.Email,
		Role:        changes.Role,
	}
	if changes.Password != nil {
		hash, err := l.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, fault.Storage(err)
		}
		patch.PasswordHash = &hash
	}

	acc, err := l.accounts.UpdateAccount(ctx, id, patch)
	if err != nil {
		return nil, storeError(err)
	}
	if acc == nil {
		return nil, fault.ErrAccountNotFound
	}
	return acc, nil
}

// DeleteAccount removes an account.
func (l *Local) DeleteAccount(ctx context.Context, _ auth.Identity, id string, _ bool) (*model.Account, error) {
	acc, err := l.accounts.DeleteAccount(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if acc == nil {
		return nil, fault.ErrAccountNotFound
	}
	return acc, nil
}

// Bootstrap creates an admin account when the store holds no accounts. It
// reports whether an account was created.
func (l *Local) Bootstrap(ctx context.Context, reg model.Registration) (bool, error) {
	n, err := l.accounts.CountAccounts(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := l.CreateAdmin(ctx, reg); err != nil {
		return false, err
	}
	return true, nil
}

func storeError(err error) error {
	var dup *store.DuplicateError
	if errors.As(err, &dup) {
		return fault.Validation(fault.Field(dup.Field, "is already in use"))
	}
	return fault.Storage(err)
}
