package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTransportMapping(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		extension string
	}{
		{CodeUnauthenticated, http.StatusUnauthorized, ExtUnauthorized},
		{CodeForbidden, http.StatusForbidden, ExtUnauthorized},
		{CodeResourceNotFound, http.StatusNotFound, ExtNotFound},
		{CodeAccountNotFound, http.StatusNotFound, ExtNotFound},
		{CodeInvalidCredentials, http.StatusUnauthorized, ExtUnauthorized},
		{CodeInvalidToken, http.StatusUnauthorized, ExtUnauthorized},
		{CodeInvalidGeometry, http.StatusBadRequest, ExtValidationError},
		{CodeValidationFailed, http.StatusBadRequest, ExtValidationError},
		{CodeStorageFault, http.StatusInternalServerError, ExtInternal},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError, ExtInternal},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.status {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.status)
		}
		if got := tt.code.Extension(); got != tt.extension {
			t.Errorf("%s.Extension() = %q, want %q", tt.code, got, tt.extension)
		}
	}
}

func TestEveryCodeIsMapped(t *testing.T) {
	codes := []Code{
		CodeUnauthenticated, CodeForbidden, CodeResourceNotFound, CodeAccountNotFound,
		CodeInvalidCredentials, CodeInvalidToken, CodeInvalidGeometry, CodeValidationFailed,
		CodeStorageFault,
	}
	for _, c := range codes {
		if _, ok := transports[c]; !ok {
			t.Errorf("code %s has no transport mapping", c)
		}
	}
}

func TestFromUncodedIsStorageFault(t *testing.T) {
	cause := errors.New("disk on fire")
	err := From(fmt.Errorf("getting item: %w", cause))

	if err.Code != CodeStorageFault {
		t.Fatalf("expected STORAGE_FAULT, got %s", err.Code)
	}
	if err.Message == cause.Error() {
		t.Error("storage fault message must not expose the cause")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to stay reachable for logs")
	}
}

func TestFromKeepsCode(t *testing.T) {
	wrapped := fmt.Errorf("policy: %w", New(CodeForbidden, "nope"))
	if got := CodeOf(wrapped); got != CodeForbidden {
		t.Errorf("expected FORBIDDEN, got %s", got)
	}
	if !errors.Is(wrapped, ErrForbidden) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("expected errors.Is not to match a different code")
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code for nil, got %s", got)
	}
}

func TestValidationAggregates(t *testing.T) {
	err := Validation(
		Field("name", "must be at least %d characters", 2),
		nil,
		Field("weight", "must be positive"),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	fe := From(err)
	if fe.Code != CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %s", fe.Code)
	}

	want := []FieldError{
		{Field: "name", Message: "must be at least 2 characters"},
		{Field: "weight", Message: "must be positive"},
	}
	if diff := cmp.Diff(want, fe.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationEmpty(t *testing.T) {
	if err := Validation(nil, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
