package model

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/zemljevid/internal/fault"
)

// Account is an owner account. The password hash never leaves storage
// and the identity provider.
type Account struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"user_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Input limits.
const (
	MinDisplayNameLength = 3
	MinPasswordLength    = 8
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// Owner returns the public projection embedded in items.
func (a *Account) Owner() OwnerRef {
	return OwnerRef{ID: a.ID, DisplayName: a.DisplayName, Email: a.Email}
}

// OwnerRef is the minimal account projection returned alongside items.
type OwnerRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"user_name"`
	Email       string `json:"email"`
}

// Registration is the input for creating an account.
type Registration struct {
	DisplayName string `json:"user_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Validate reports every invalid field at once.
func (r Registration) Validate() error {
	return fault.Validation(
		checkDisplayName(r.DisplayName),
		checkEmail(r.Email),
		checkPassword(r.Password),
	)
}

// AccountChanges is a partial account update as supplied by clients. Nil
// fields are left unchanged.
type AccountChanges struct {
	DisplayName *string `json:"user_name"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
}

// Validate checks the fields that are present.
func (c AccountChanges) Validate() error {
	var errs []error
	if c.DisplayName != nil {
		errs = append(errs, checkDisplayName(*c.DisplayName))
	}
	if c.Email != nil {
		errs = append(errs, checkEmail(*c.Email))
	}
	if c.Password != nil {
		errs = append(errs, checkPassword(*c.Password))
	}
	if c.Role != nil && !ValidRole(*c.Role) {
		errs = append(errs, fault.Field("role", "must be %q or %q", RoleAdmin, RoleUser))
	}
	return fault.Validation(errs...)
}

// Empty reports whether no field is set.
func (c AccountChanges) Empty() bool {
	return c.DisplayName == nil && c.Email == nil && c.Password == nil && c.Role == nil
}

// AccountPatch is a partial account update as applied by storage.
type AccountPatch struct {
	DisplayName  *string
	Email        *string
	PasswordHash *string
	Role         *string
}

// Empty reports whether no field is set.
func (p AccountPatch) Empty() bool {
	return p.DisplayName == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil
}

func checkDisplayName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinDisplayNameLength {
		return fault.Field("user_name", "must be at least %d characters", MinDisplayNameLength)
	}
	return nil
}

func checkEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fault.Field("email", "must be a valid email address")
	}
	return nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fault.Field("password", "must be at least %d characters", MinPasswordLength)
	}
	return nil
}
