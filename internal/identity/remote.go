package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/observability"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = time.Minute
)

// Envelope is the body shape of every REST response, upstream included.
type Envelope struct {
	Message string          `json:"message"`
	Code    fault.Code      `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	Token string         `json:"token"`
	User  *model.Account `json:"user"`
}

// Remote delegates account management and token verification to an
// upstream service. Only owner projections are cached; identities and
// admin role checks always go upstream.
type Remote struct {
	baseURL string
	client  *http.Client
	owners  *cache.Cache
}

var _ Provider = (*Remote)(nil)

// NewRemote returns a provider for the service at baseURL, e.g.
// "https://accounts.example.com/api/v1".
func NewRemote(baseURL string, timeout, cacheTTL time.Duration) *Remote {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		owners:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Login exchanges credentials for a token upstream.
func (r *Remote) Login(ctx context.Context, identifier, password string) (string, *model.Account, error) {
	body := map[string]string{"username": identifier, "password": password}

	var res LoginResult
	if err := r.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &res); err != nil {
		if fault.CodeOf(err) == fault.CodeInvalidToken {
			return "", nil, errBadCredentials
		}
		return "", nil, err
	}
	if res.Token == "" || res.User == nil {
		return "", nil, fault.Storage(errors.New("identity upstream login: empty token or user"))
	}
	return res.Token, res.User, nil
}

// Verify resolves a token through the upstream token check.
func (r *Remote) Verify(ctx context.Context, token string) (auth.Identity, error) {
	var acc model.Account
	if err := r.do(ctx, "verify", http.MethodGet, "/users/token", token, nil, &acc); err != nil {
		if code := fault.CodeOf(err); code == fault.CodeAccountNotFound || code == fault.CodeUnauthenticated {
			return auth.Anonymous, fault.New(fault.CodeInvalidToken, "invalid token")
		}
		return auth.Anonymous, err
	}
	if acc.ID == "" {
		return auth.Anonymous, fault.New(fault.CodeInvalidToken, "invalid token")
	}
	return auth.Identity{
		SubjectID:         acc.ID,
		DisplayName:       acc.DisplayName,
		Email:             acc.Email,
		Role:              acc.Role,
		CredentialPresent: true,
		Token:             token,
	}, nil
}

// Account fetches an account upstream and refreshes the owner cache.
func (r *Remote) Account(ctx context.Context, id string) (*model.Account, error) {
	var acc model.Account
	err := r.do(ctx, "account", http.MethodGet, "/users/"+url.PathEscape(id), "", nil, &acc)
	if fault.CodeOf(err) == fault.CodeAccountNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.owners.Set(acc.ID, acc.Owner(), cache.DefaultExpiration)
	return &acc, nil
}

// Owner returns a cached owner projection, fetching it on a miss.
func (r *Remote) Owner(ctx context.Context, id string) (*model.OwnerRef, error) {
	if cached, ok := r.owners.Get(id); ok {
		owner := cached.(model.OwnerRef)
		return &owner, nil
	}
	acc, err := r.Account(ctx, id)
	if err != nil || acc == nil {
		return nil, err
	}
	owner := acc.Owner()
	return &owner, nil
}

// ListAccounts returns all upstream accounts.
func (r *Remote) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := r.do(ctx, "list", http.MethodGet, "/users", "", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Register creates an account upstream.
func (r *Remote) Register(ctx context.Context, reg model.Registration) (*model.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	var acc model.Account
	if err := r.do(ctx, "register", http.MethodPost, "/users", "", reg, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdateAccount forwards changes upstream as the caller.
func (r *Remote) UpdateAccount(ctx context.Context, caller auth.Identity, id string, changes model.AccountChanges, asAdmin bool) (*model.Account, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}
	path := "/users"
	if asAdmin {
		path = "/users/admin/" + url.PathEscape(id)
	}

	var acc model.Account
	if err := r.do(ctx, "update", http.MethodPut, path, caller.Token, changes, &acc); err != nil {
		return nil, err
	}
	r.owners.Delete(id)
	return &acc, nil
}

// DeleteAccount forwards the deletion upstream as the caller.
func (r *Remote) DeleteAccount(ctx context.Context, caller auth.Identity, id string, asAdmin bool) (*model.Account, error) {
	path := "/users"
	if asAdmin {
		path = "/users/admin/" + url.PathEscape(id)
	}

	var acc model.Account
	if err := r.do(ctx, "delete", http.MethodDelete, path, caller.Token, nil, &acc); err != nil {
		return nil, err
	}
	r.owners.Delete(id)
	return &acc, nil
}

// do performs one upstream call and decodes the envelope's data into out.
// Every failure comes back as a coded error.
func (r *Remote) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fault.Storage(errors.Wrapf(err, "encoding %s request", op))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fault.Storage(errors.Wrapf(err, "creating %s request", op))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		observability.IdentityUpstreamDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		return fault.Storage(errors.Wrapf(err, "identity upstream %s", op))
	}
	defer resp.Body.Close()
	observability.IdentityUpstreamDuration.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	var env Envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(op, resp.StatusCode, env)
	}
	if decodeErr != nil {
		return fault.Storage(errors.Wrapf(decodeErr, "decoding %s response", op))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fault.Storage(errors.Wrapf(err, "decoding %s data", op))
		}
	}
	return nil
}

// upstreamError translates a non-2xx upstream response. A code in the
// envelope wins; otherwise the status decides.
func upstreamError(op string, status int, env Envelope) error {
	code := env.Code
	if code == "" {
		switch {
		case status == http.StatusUnauthorized:
			code = fault.CodeInvalidToken
		case status == http.StatusForbidden:
			code = fault.CodeForbidden
		case status == http.StatusNotFound:
			code = fault.CodeAccountNotFound
		case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
			code = fault.CodeValidationFailed
		default:
			code = fault.CodeStorageFault
		}
	}

	if code == fault.CodeStorageFault {
		return fault.Storage(errors.Errorf("identity upstream %s: status %d: %s", op, status, env.Message))
	}

	msg := env.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(code), "_", " "))
	}
	e := fault.New(code, msg)
	if code == fault.CodeValidationFailed && len(env.Data) > 0 {
		json.Unmarshal(env.Data, &e.Fields)
	}
	return e
}
