package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zemljevid/internal/fault"
)

// envelope is the body of every JSON response.
type envelope struct {
	Message string     `json:"message"`
	Code    fault.Code `json:"code,omitempty"`
	Data    any        `json:"data,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, message string, data any) {
	jsonResponse(w, status, envelope{Message: message, Data: data})
}

// jsonError writes the envelope for err. The status comes from the shared
// fault table; storage causes are logged and never sent.
func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	e := fault.From(err)
	if e.Code == fault.CodeStorageFault {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	env := envelope{Message: e.Message, Code: e.Code}
	if len(e.Fields) > 0 {
		env.Data = e.Fields
	}
	jsonResponse(w, e.Code.HTTPStatus(), env)
}

var errBadBody = fault.Validation(fault.Field("body", "invalid request body"))

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fault.Validation(fault.Field("body", "request body too large"))
		}
		return errBadBody
	}
	return nil
}
