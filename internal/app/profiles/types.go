package profiles

import (
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

type ChildInput struct {
	Name      string
	BirthDate time.Time
	Gender    *string
	Interests []string
}

type CreateMyProfileInput struct {
	FirstName string
	LastName  string
	// Email is used only when the owning account cannot be resolved (dev auth).
	Email string

	Bio            *string
	Interests      []string
	Children       []ChildInput
	Location       *domain.GeoLocation
	ProfilePicture *string
}

type UpdateMyProfileInput struct {
	// FirstName and LastName cannot be null.
	FirstName Optional[string]
	LastName  Optional[string]

	Bio            Optional[string]
	Interests      Optional[[]string]     // null clears
	Children       Optional[[]ChildInput] // value replaces the whole list; null clears
	Location       Optional[domain.GeoLocation]
	ProfilePicture Optional[string]
}

// NearbyProfile is a profile found by a proximity search.
type NearbyProfile struct {
	Profile        domain.Profile
	DistanceMeters float64
}
