package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/db"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/identity"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/policy"
	"github.com/erazemk/zemljevid/internal/store"
)

type testEnv struct {
	store    *store.SQLite
	local    *identity.Local
	items    *Items
	accounts *Accounts
	tokens   *auth.Tokens
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewSQLite(db.NewTestDB(t))
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	tokens := auth.NewTokens("test-secret", 0)
	local := identity.NewLocal(st, hasher, tokens)
	pol := policy.New(local)

	return &testEnv{
		store:    st,
		local:    local,
		items:    NewItems(st, st, local, pol),
		accounts: NewAccounts(local, st, pol),
		tokens:   tokens,
	}
}

// account creates an account and returns the identity its token carries.
func (e *testEnv) account(t *testing.T, name, role string) auth.Identity {
	t.Helper()

	reg := model.Registration{DisplayName: name, Email: name + "@example.com", Password: "password123"}
	var (
		acc *model.Account
		err error
	)
	if role == model.RoleAdmin {
		acc, err = e.local.CreateAdmin(context.Background(), reg)
	} else {
		acc, err = e.local.Register(context.Background(), reg)
	}
	if err != nil {
		t.Fatalf("creating account %s: %v", name, err)
	}

	token, err := e.tokens.Issue(acc)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	ident, err := e.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return ident
}

func (e *testEnv) item(t *testing.T, owner auth.Identity, name string, lat, lng float64) *model.Item {
	t.Helper()
	item, err := e.items.Create(context.Background(), owner, NewItem{
		Name:      name,
		Weight:    2.5,
		Birthdate: "2021-06-01",
		Location:  geo.NewPoint(lat, lng),
	})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return item
}

func testPNG(t *testing.T) *bytes.Reader {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := range 40 {
		for y := range 20 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func assertCode(t *testing.T, err error, want fault.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := fault.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
