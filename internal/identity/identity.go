// Package identity resolves credentials into identities and manages owner
// accounts. Local keeps accounts in the configured store; Remote delegates
// everything to an upstream service speaking the same REST contract.
package identity

import (
	"context"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/model"
)

// Provider is the account and credential capability. Lookups return
// (nil, nil) when the account does not exist. Mutations are executed as
// requested; authorization happens before they are called.
type Provider interface {
	// Login checks an email or display name and password, returning a
	// signed token and the account.
	Login(ctx context.Context, identifier, password string) (string, *model.Account, error)
	// Verify resolves a bearer token into an identity.
	Verify(ctx context.Context, token string) (auth.Identity, error)
	// Account returns the current state of an account, never a cached copy.
	Account(ctx context.Context, id string) (*model.Account, error)
	// Owner returns the public projection of an account. It may be cached.
	Owner(ctx context.Context, id string) (*model.OwnerRef, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	Register(ctx context.Context, reg model.Registration) (*model.Account, error)
	UpdateAccount(ctx context.Context, caller auth.Identity, id string, changes model.AccountChanges, asAdmin bool) (*model.Account, error)
	DeleteAccount(ctx context.Context, caller auth.Identity, id string, asAdmin bool) (*model.Account, error)
}

// Mode names.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)
