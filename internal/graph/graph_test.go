package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graphql-go/graphql"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/db"
	"github.com/erazemk/zemljevid/internal/identity"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/policy"
	"github.com/erazemk/zemljevid/internal/service"
	"github.com/erazemk/zemljevid/internal/store"
)

type testEnv struct {
	schema graphql.Schema
	local  *identity.Local
	tokens *auth.Tokens
	store  *store.SQLite
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

	schema, err := NewSchema(service.NewItems(st, st, local, pol), service.NewAccounts(local, st, pol))
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return &testEnv{schema: schema, local: local, tokens: tokens, store: st}
}

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
	token, _ := e.tokens.Issue(acc)
	ident, err := e.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return ident
}

// run executes query as ident and decodes the data into out.
func (e *testEnv) run(t *testing.T, ident auth.Identity, query string, vars map[string]any, out any) *graphql.Result {
	t.Helper()

	res := Execute(auth.WithIdentity(context.Background(), ident), e.schema, Request{Query: query, Variables: vars})
	if out != nil && res.Data != nil {
		data, err := json.Marshal(res.Data)
		if err != nil {
			t.Fatalf("encoding data: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
	}
	return res
}

func errorCode(t *testing.T, res *graphql.Result) string {
	t.Helper()
	if len(res.Errors) == 0 {
		t.Fatal("expected errors, got none")
	}
	code, _ := res.Errors[0].Extensions["code"].(string)
	return code
}

func mustSucceed(t *testing.T, res *graphql.Result) {
	t.Helper()
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors: %+v", res.Errors)
	}
}

const createItem = `mutation($name: String!, $loc: LocationInput!) {
	createItem(name: $name, weight: 4.5, birthdate: "2020-05-05", location: $loc) {
		id name weight owner { id user_name }
	}
}`

type itemData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Owner  struct {
		ID       string `json:"id"`
		UserName string `json:"user_name"`
	} `json:"owner"`
}

func (e *testEnv) createItem(t *testing.T, ident auth.Identity, name string, lat, lng float64) itemData {
	t.Helper()

	var out struct {
		CreateItem itemData `json:"createItem"`
	}
	res := e.run(t, ident, createItem, map[string]any{
		"name": name,
		"loc":  map[string]any{"type": "Point", "coordinates": []any{lng, lat}},
	}, &out)
	mustSucceed(t, res)
	return out.CreateItem
}

func TestCreateAndQueryItem(t *testing.T) {
	env := setup(t)
	ana := env.account(t, "ana", model.RoleUser)

	created := env.createItem(t, ana, "lamp", 46.05, 14.5)
	if created.Owner.ID != ana.SubjectID || created.Owner.UserName != "ana" {
		t.Errorf("unexpected owner: %+v", created.Owner)
	}

	var out struct {
		ItemByID struct {
			Name     string `json:"name"`
			Location struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"location"`
		} `json:"itemById"`
	}
	res := env.run(t, auth.Anonymous, `query($id: ID!) { itemById(id: $id) { name location { type coordinates } } }`,
		map[string]any{"id": created.ID}, &out)
	mustSucceed(t, res)
	if out.ItemByID.Location.Type != "Point" || out.ItemByID.Location.Coordinates[1] != 46.05 {
		t.Errorf("unexpected location: %+v", out.ItemByID.Location)
	}
}

func TestCreateItemRequiresCredential(t *testing.T) {
	env := setup(t)

	res := env.run(t, auth.Anonymous, createItem, map[string]any{
		"name": "lamp",
		"loc":  map[string]any{"coordinates": []any{14.5, 46.05}},
	}, nil)
	if code := errorCode(t, res); code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %q", code)
	}
}

func TestMutationsFollowOwnership(t *testing.T) {
	env := setup(t)
	ana := env.account(t, "ana", model.RoleUser)
	bor := env.account(t, "bor", model.RoleUser)
	root := env.account(t, "root", model.RoleAdmin)
	item := env.createItem(t, ana, "lamp", 46, 14)
	vars := map[string]any{"id": item.ID}

	res := env.run(t, bor, `mutation($id: ID!) { deleteItem(id: $id) { id } }`, vars, nil)
	if code := errorCode(t, res); code != "UNAUTHORIZED" {
		t.Errorf("non-owner delete: expected UNAUTHORIZED, got %q", code)
	}
	if reason := res.Errors[0].Extensions["reason"]; reason != "FORBIDDEN" {
		t.Errorf("expected reason FORBIDDEN, got %v", reason)
	}

	var out struct {
		UpdateItem itemData `json:"updateItem"`
	}
	res = env.run(t, ana, `mutation($id: ID!) { updateItem(id: $id, weight: 5) { id name weight } }`, vars, &out)
	mustSucceed(t, res)
	if out.UpdateItem.Weight != 5 || out.UpdateItem.Name != "lamp" {
		t.Errorf("unexpected item after partial update: %+v", out.UpdateItem)
	}

	res = env.run(t, bor, `mutation($id: ID!) { deleteItemAsAdmin(id: $id) { id } }`, vars, nil)
	if code := errorCode(t, res); code != "UNAUTHORIZED" {
		t.Errorf("non-admin override: expected UNAUTHORIZED, got %q", code)
	}

	res = env.run(t, root, `mutation($id: ID!) { deleteItemAsAdmin(id: $id) { id } }`, vars, nil)
	mustSucceed(t, res)

	res = env.run(t, auth.Anonymous, `query($id: ID!) { itemById(id: $id) { id } }`, vars, nil)
	if code := errorCode(t, res); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND after delete, got %q", code)
	}
}

func TestAdminTransfersItem(t *testing.T) {
	env := setup(t)
	ana := env.account(t, "ana", model.RoleUser)
	bor := env.account(t, "bor", model.RoleUser)
	root := env.account(t, "root", model.RoleAdmin)
	item := env.createItem(t, ana, "lamp", 46, 14)

	var out struct {
		UpdateItemAsAdmin itemData `json:"updateItemAsAdmin"`
	}
	res := env.run(t, root, `mutation($id: ID!, $owner: ID) { updateItemAsAdmin(id: $id, owner: $owner) { id owner { id user_name } } }`,
		map[string]any{"id": item.ID, "owner": bor.SubjectID}, &out)
	mustSucceed(t, res)
	if out.UpdateItemAsAdmin.Owner.ID != bor.SubjectID {
		t.Errorf("expected bor as owner, got %+v", out.UpdateItemAsAdmin.Owner)
	}
}

func TestItemsByArea(t *testing.T) {
	env := setup(t)
	ana := env.account(t, "ana", model.RoleUser)
	env.createItem(t, ana, "inside", 61.45, 23.75)
	env.createItem(t, ana, "outside", 61.45, 23.9)

	var out struct {
		ItemsByArea []itemData `json:"itemsByArea"`
	}
	res := env.run(t, auth.Anonymous, `{ itemsByArea(topRight: "61.5,23.8", bottomLeft: "61.4,23.7") { name } }`, nil, &out)
	mustSucceed(t, res)
	if len(out.ItemsByArea) != 1 || out.ItemsByArea[0].Name != "inside" {
		t.Errorf("expected only 'inside', got %+v", out.ItemsByArea)
	}

	res = env.run(t, auth.Anonymous, `{ itemsByArea(topRight: "x", bottomLeft: "61.4,23.7") { name } }`, nil, nil)
	if code := errorCode(t, res); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", code)
	}
}

func TestAccountMutations(t *testing.T) {
	env := setup(t)

	var reg struct {
		Register struct {
			Message string `json:"message"`
			User    struct {
				ID   string `json:"id"`
				Role string `json:"role"`
			} `json:"user"`
		} `json:"register"`
	}
	res := env.run(t, auth.Anonymous, `mutation {
		register(user: {user_name: "ana", email: "ana@example.com", password: "password123"}) { message user { id role } }
	}`, nil, &reg)
	mustSucceed(t, res)
	if reg.Register.User.Role != model.RoleUser {
		t.Errorf("expected user role, got %q", reg.Register.User.Role)
	}

	var login struct {
		Login struct {
			Token string `json:"token"`
		} `json:"login"`
	}
	res = env.run(t, auth.Anonymous, `mutation { login(username: "ana", password: "password123") { token } }`, nil, &login)
	mustSucceed(t, res)

	ident, err := env.tokens.Verify(login.Login.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	res = env.run(t, ident, `mutation { updateUser(user: {role: "admin"}) { message } }`, nil, nil)
	if code := errorCode(t, res); code != "UNAUTHORIZED" {
		t.Errorf("self role change: expected UNAUTHORIZED, got %q", code)
	}

	res = env.run(t, ident, `mutation { updateUser(user: {user_name: "anita"}) { user { user_name } } }`, nil, nil)
	mustSucceed(t, res)

	res = env.run(t, auth.Anonymous, `mutation { login(username: "anita", password: "wrong-password") { token } }`, nil, nil)
	if code := errorCode(t, res); code != "UNAUTHORIZED" {
		t.Errorf("bad login: expected UNAUTHORIZED, got %q", code)
	}

	res = env.run(t, ident, `mutation { deleteUser { message } }`, nil, nil)
	mustSucceed(t, res)

	res = env.run(t, ident, `{ checkToken { message } }`, nil, nil)
	if code := errorCode(t, res); code != "NOT_FOUND" {
		t.Errorf("checkToken after delete: expected NOT_FOUND, got %q", code)
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	env := setup(t)

	res := env.run(t, auth.Anonymous, `mutation {
		register(user: {user_name: "a", email: "nope", password: "x"}) { message }
	}`, nil, nil)
	if code := errorCode(t, res); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %q", code)
	}
	if _, ok := res.Errors[0].Extensions["fields"]; !ok {
		t.Error("expected field errors in extensions")
	}
}

func TestHandler(t *testing.T) {
	env := setup(t)
	ana := env.account(t, "ana", model.RoleUser)
	server := httptest.NewServer(NewHandler(env.schema, env.local))
	t.Cleanup(server.Close)

	post := func(token string, body any) (int, graphql.Result) {
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest("POST", server.URL, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		var res graphql.Result
		json.NewDecoder(resp.Body).Decode(&res)
		return resp.StatusCode, res
	}

	status, res := post(ana.Token, Request{Query: `{ checkToken { user { user_name } } }`})
	if status != http.StatusOK || len(res.Errors) > 0 {
		t.Fatalf("checkToken: %d %+v", status, res.Errors)
	}

	_, res = post("forged", Request{Query: `{ items { id } }`})
	if len(res.Errors) == 0 || res.Errors[0].Extensions["reason"] != "INVALID_TOKEN" {
		t.Errorf("expected INVALID_TOKEN for forged credential, got %+v", res.Errors)
	}

	status, _ = post("", map[string]string{})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %d", status)
	}

	resp, err := http.Get(server.URL + "?query=" + "%7B%20users%20%7B%20user_name%20%7D%20%7D")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET query: expected 200, got %d", resp.StatusCode)
	}
}
