package events

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

type CreateEventInput struct {
	Title           string
	Description     string
	Location        *domain.GeoLocation
	DateTime        time.Time
	MaxParticipants *int
}

type UpdateEventInput struct {
	// Title, Description, Location and DateTime cannot be null.
	Title       Optional[string]
	Description Optional[string]
	Location    Optional[domain.GeoLocation]
	DateTime    Optional[time.Time]

	// MaxParticipants null removes the limit.
	MaxParticipants Optional[int]
}
