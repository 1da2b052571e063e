package eventrepo

import (
	"context"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Repository provides access to persisted events.
//
// Result ordering expectations:
// - list methods return events ordered by DateTime ascending, ties broken by ID
// - FindNear orders by distance ascending
type Repository interface {
	Create(ctx context.Context, e domain.Event) error
	// Save replaces the stored event's details. ParticipantIDs is ignored; the
	// participant list only changes through AddParticipant and RemoveParticipant.
	// Returns ErrCapacityExceeded when MaxParticipants is below the stored participant count.
	Save(ctx context.Context, e domain.Event) error
	Delete(ctx context.Context, id domain.EventID) error

	// AddParticipant atomically appends profile unless it is already a participant.
	// Returns ErrCapacityExceeded when the event is full, ErrNotFound when it does not exist.
	// The returned event reflects the stored state after the call.
	AddParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error)
	// RemoveParticipant atomically drops profile. Removing a non-participant is a no-op.
	RemoveParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error)

	GetByID(ctx context.Context, id domain.EventID) (domain.Event, error)

	ListUpcoming(ctx context.Context, after time.Time) ([]domain.Event, error)
	FindNear(ctx context.Context, lon, lat float64, maxMeters float64, after time.Time) ([]domain.Event, error)
	ListByOrganizer(ctx context.Context, organizer domain.ProfileID) ([]domain.Event, error)
	ListByParticipant(ctx context.Context, participant domain.ProfileID) ([]domain.Event, error)
}
