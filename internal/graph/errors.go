package graph

import (
	"log/slog"

	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/observability"
)

// gqlError carries a failure code in the GraphQL error extensions.
type gqlError struct {
	err *fault.Error
}

func (e gqlError) Error() string {
	return e.err.Message
}

// Extensions implements gqlerrors.ExtendedError.
func (e gqlError) Extensions() map[string]any {
	ext := map[string]any{
		"code":   e.err.Code.Extension(),
		"reason": string(e.err.Code),
	}
	if len(e.err.Fields) > 0 {
		ext["fields"] = e.err.Fields
	}
	return ext
}

// toGraphQL converts a service error into a typed GraphQL error. Storage
// causes are logged and replaced by the generic message.
func toGraphQL(err error) error {
	if err == nil {
		return nil
	}
	e := fault.From(err)
	if e.Code == fault.CodeStorageFault {
		slog.Error("graphql resolver failed", "error", err)
	}
	observability.GraphQLErrors.WithLabelValues(string(e.Code)).Inc()
	return gqlError{err: e}
}
