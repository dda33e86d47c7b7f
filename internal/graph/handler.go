package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/fault"
)

// maxQueryBytes limits GraphQL request bodies.
const maxQueryBytes = 1 << 20

// Verifier resolves bearer tokens into identities.
type Verifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Request is a GraphQL request as sent over HTTP.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// Handler serves GraphQL over HTTP GET and POST.
type Handler struct {
	schema   graphql.Schema
	verifier Verifier
}

// NewHandler returns a handler executing requests against schema.
func NewHandler(schema graphql.Schema, v Verifier) *Handler {
	return &Handler{schema: schema, verifier: v}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				writeErrors(w, http.StatusBadRequest, fault.Validation(fault.Field("variables", "must be a JSON object")))
				return
			}
		}
	case http.MethodPost:
		body := http.MaxBytesReader(w, r.Body, maxQueryBytes)
		defer body.Close()
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeErrors(w, http.StatusBadRequest, fault.Validation(fault.Field("body", "invalid request body")))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeErrors(w, http.StatusMethodNotAllowed, fault.New(fault.CodeValidationFailed, "method not allowed"))
		return
	}

	if req.Query == "" {
		writeErrors(w, http.StatusBadRequest, fault.Validation(fault.Field("query", "is required")))
		return
	}

	ident, err := h.resolveIdentity(r)
	if err != nil {
		writeErrors(w, http.StatusOK, err)
		return
	}

	result := Execute(auth.WithIdentity(r.Context(), ident), h.schema, req)
	writeJSON(w, http.StatusOK, result)
}

// Execute runs one request. Identity must already be in ctx.
func Execute(ctx context.Context, schema graphql.Schema, req Request) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
}

// resolveIdentity derives the caller from the Authorization header. A
// missing header is anonymous; a bad credential fails the whole request.
func (h *Handler) resolveIdentity(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Anonymous, nil
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		return auth.Anonymous, fault.New(fault.CodeInvalidToken, "malformed authorization header")
	}
	return h.verifier.Verify(r.Context(), token)
}

func writeErrors(w http.ResponseWriter, status int, err error) {
	gerr := toGraphQL(err)
	writeJSON(w, status, &graphql.Result{
		Errors: []gqlerrors.FormattedError{{
			Message:    gerr.Error(),
			Extensions: gerr.(gqlError).Extensions(),
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding graphql response", "error", err)
	}
}
