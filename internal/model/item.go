package model

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/geo"
)

// BirthdateLayout is the layout of Item.Birthdate.
const BirthdateLayout = "2006-01-02"

// MinItemNameLength is the shortest accepted item name.
const MinItemNameLength = 2

// Item is a located resource owned by exactly one account. Owner carries
// the owner's id plus a denormalized copy of its display fields.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	Image     string    `json:"image"`
	Birthdate string    `json:"birthdate"`
	Location  geo.Point `json:"location"`
	Owner     OwnerRef  `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate reports every invalid field at once.
func (it *Item) Validate() error {
	return fault.Validation(
		checkItemName(it.Name),
		checkWeight(it.Weight),
		checkBirthdate(it.Birthdate),
		checkLocation(it.Location),
	)
}

// ItemPatch is a partial item update. A nil field is left unchanged; a
// non-nil field is applied even when it holds a zero value.
type ItemPatch struct {
	Name      *string
	Weight    *float64
	Image     *string
	Birthdate *string
	Location  *geo.Point
	Owner     *OwnerRef
}

// Validate checks the fields that are present.
func (p ItemPatch) Validate() error {
	var errs []error
	if p.Name != nil {
		errs = append(errs, checkItemName(*p.Name))
	}
	if p.Weight != nil {
		errs = append(errs, checkWeight(*p.Weight))
	}
	if p.Birthdate != nil {
		errs = append(errs, checkBirthdate(*p.Birthdate))
	}
	if p.Location != nil {
		errs = append(errs, checkLocation(*p.Location))
	}
	return fault.Validation(errs...)
}

// Empty reports whether no field is set.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Weight == nil && p.Image == nil &&
		p.Birthdate == nil && p.Location == nil && p.Owner == nil
}

func checkItemName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinItemNameLength {
		return fault.Field("name", "must be at least %d characters", MinItemNameLength)
	}
	return nil
}

func checkWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fault.Field("weight", "must be a positive number")
	}
	return nil
}

func checkBirthdate(s string) error {
	if _, err := time.Parse(BirthdateLayout, s); err != nil {
		return fault.Field("birthdate", "must be a date in YYYY-MM-DD format")
	}
	return nil
}

func checkLocation(p geo.Point) error {
	if err := p.Validate(); err != nil {
		return fault.Field("location", "%s", err.Error())
	}
	return nil
}
