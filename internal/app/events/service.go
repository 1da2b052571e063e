package events

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

type Service struct {
	events   eventrepo.Repository
	profiles profilerepo.Repository
	clk      clockport.Clock

	newEventID func() domain.EventID
}

func NewService(events eventrepo.Repository, profiles profilerepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		events:   events,
		profiles: profiles,
		clk:      clk,
		newEventID: func() domain.EventID {
			return domain.EventID(uuid.NewString())
		},
	}
}

// SetNewEventIDForTest overrides event ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewEventIDForTest(fn func() domain.EventID) {
	if fn != nil {
		s.newEventID = fn
	}
}

func errEventNotFound() *apperr.Error {
	return apperr.NotFound("EVENT_NOT_FOUND", "event not found")
}

func errEventFull(max int) *apperr.Error {
	return &apperr.Error{
		Kind:    apperr.KindCapacityExceeded,
		Code:    "EVENT_FULL",
		Message: "event has reached its participant limit",
		Details: map[string]any{"maxParticipants": max},
	}
}

func (s *Service) CreateEvent(ctx context.Context, organizer domain.ProfileID, in CreateEventInput) (domain.Event, error) {
	now := s.clk.Now()
	details := map[string]any{}

	title := domain.NormalizeHumanName(in.Title)
	if title == "" {
		details["title"] = "must be non-empty"
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		details["description"] = "must be non-empty"
	}
	if in.Location == nil {
		details["location"] = "is required"
	} else if !in.Location.Valid() {
		details["location"] = "coordinates out of range"
	}
	if in.DateTime.IsZero() || !in.DateTime.After(now) {
		details["dateTime"] = "must be in the future"
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < 1 {
		details["maxParticipants"] = "must be at least 1"
	}
	if len(details) > 0 {
		return domain.Event{}, apperr.Validation("invalid event", details)
	}

	e := domain.Event{
		ID:              s.newEventID(),
		OrganizerID:     organizer,
		Title:           title,
		Description:     desc,
		Location:        *in.Location,
		DateTime:        in.DateTime.UTC(),
		MaxParticipants: in.MaxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	e = e.Clone()
	if err := s.events.Create(ctx, e); err != nil {
		if errors.Is(err, eventrepo.ErrAlreadyExists) {
			return domain.Event{}, apperr.Conflict("EVENT_ID_CONFLICT", "event id conflict")
		}
		return domain.Event{}, err
	}
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id domain.EventID) (domain.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return domain.Event{}, errEventNotFound()
		}
		return domain.Event{}, err
	}
	return e, nil
}

func (s *Service) getOwned(ctx context.Context, caller domain.ProfileID, id domain.EventID) (domain.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if e.OrganizerID != caller {
		return domain.Event{}, apperr.Forbidden("NOT_EVENT_ORGANIZER", "only the organizer can change this event")
	}
	return e, nil
}

func (s *Service) UpdateEvent(ctx context.Context, caller domain.ProfileID, id domain.EventID, in UpdateEventInput) (domain.Event, error) {
	e, err := s.getOwned(ctx, caller, id)
	if err != nil {
		return domain.Event{}, err
	}
	now := s.clk.Now()
	e = e.Clone()

	notNull := func(field string, specified, isNull bool) error {
		if specified && isNull {
			return apperr.Validation("invalid "+field, map[string]any{field: "cannot be null"})
		}
		return nil
	}

	if err := notNull("title", in.Title.IsSpecified(), in.Title.IsNull()); err != nil {
		return domain.Event{}, err
	}
	if in.Title.IsSpecified() {
		v := domain.NormalizeHumanName(in.Title.Value())
		if v == "" {
			return domain.Event{}, apperr.Validation("invalid title", map[string]any{"title": "must be non-empty"})
		}
		e.Title = v
	}

	if err := notNull("description", in.Description.IsSpecified(), in.Description.IsNull()); err != nil {
		return domain.Event{}, err
	}
	if in.Description.IsSpecified() {
		v := strings.TrimSpace(in.Description.Value())
		if v == "" {
			return domain.Event{}, apperr.Validation("invalid description", map[string]any{"description": "must be non-empty"})
		}
		e.Description = v
	}

	if err := notNull("location", in.Location.IsSpecified(), in.Location.IsNull()); err != nil {
		return domain.Event{}, err
	}
	if in.Location.IsSpecified() {
		loc := in.Location.Value()
		if !loc.Valid() {
			return domain.Event{}, apperr.Validation("invalid location", map[string]any{"location": "coordinates out of range"})
		}
		e.Location = loc
	}

	if err := notNull("dateTime", in.DateTime.IsSpecified(), in.DateTime.IsNull()); err != nil {
		return domain.Event{}, err
	}
	if in.DateTime.IsSpecified() {
		v := in.DateTime.Value()
		if !v.After(now) {
			return domain.Event{}, apperr.Validation("invalid dateTime", map[string]any{"dateTime": "must be in the future"})
		}
		e.DateTime = v.UTC()
	}

	if in.MaxParticipants.IsSpecified() {
		if in.MaxParticipants.IsNull() {
			e.MaxParticipants = nil
		} else {
			v := in.MaxParticipants.Value()
			if v < 1 {
				return domain.Event{}, apperr.Validation("invalid maxParticipants", map[string]any{"maxParticipants": "must be at least 1"})
			}
			if v < len(e.ParticipantIDs) {
				return domain.Event{}, errEventFull(v)
			}
			e.MaxParticipants = &v
		}
	}

	e.UpdatedAt = now
	if err := s.save(ctx, e); err != nil {
		return domain.Event{}, err
	}
	// Participants may have changed since the read above.
	return s.GetEvent(ctx, id)
}

func (s *Service) DeleteEvent(ctx context.Context, caller domain.ProfileID, id domain.EventID) error {
	if _, err := s.getOwned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return errEventNotFound()
		}
		return err
	}
	return nil
}

// Join adds the profile to the event. Joining twice returns the event unchanged.
func (s *Service) Join(ctx context.Context, id domain.EventID, profile domain.ProfileID) (domain.Event, error) {
	e, err := s.events.AddParticipant(ctx, id, profile, s.clk.Now())
	if err != nil {
		return domain.Event{}, s.mapParticipantErr(ctx, id, err)
	}
	return e, nil
}

// Leave removes the profile from the event. Leaving when not a participant is a no-op.
func (s *Service) Leave(ctx context.Context, id domain.EventID, profile domain.ProfileID) (domain.Event, error) {
	e, err := s.events.RemoveParticipant(ctx, id, profile, s.clk.Now())
	if err != nil {
		return domain.Event{}, s.mapParticipantErr(ctx, id, err)
	}
	return e, nil
}

func (s *Service) mapParticipantErr(ctx context.Context, id domain.EventID, err error) error {
	switch {
	case errors.Is(err, eventrepo.ErrNotFound):
		return errEventNotFound()
	case errors.Is(err, eventrepo.ErrCapacityExceeded):
		e, gerr := s.GetEvent(ctx, id)
		if gerr != nil {
			return gerr
		}
		if e.MaxParticipants == nil {
			return apperr.CapacityExceeded("EVENT_FULL", "event has reached its participant limit")
		}
		return errEventFull(*e.MaxParticipants)
	default:
		return err
	}
}

// ListUpcoming returns events scheduled after now, soonest first.
func (s *Service) ListUpcoming(ctx context.Context) ([]domain.Event, error) {
	return s.events.ListUpcoming(ctx, s.clk.Now())
}

// ListNearby returns upcoming events within maxMeters of the profile's location.
func (s *Service) ListNearby(ctx context.Context, profileID domain.ProfileID, maxMeters float64) ([]domain.Event, error) {
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return nil, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return nil, err
	}
	if p.Location == nil {
		return nil, apperr.InvalidOperation("LOCATION_NOT_SET", "set a profile location before searching nearby")
	}
	if maxMeters <= 0 {
		maxMeters = domain.DefaultSearchRadiusMeters
	}
	return s.events.FindNear(ctx, p.Location.Longitude, p.Location.Latitude, maxMeters, s.clk.Now())
}

func (s *Service) ListOrganizedBy(ctx context.Context, organizer domain.ProfileID) ([]domain.Event, error) {
	return s.events.ListByOrganizer(ctx, organizer)
}

func (s *Service) ListParticipating(ctx context.Context, participant domain.ProfileID) ([]domain.Event, error) {
	return s.events.ListByParticipant(ctx, participant)
}

func (s *Service) save(ctx context.Context, e domain.Event) error {
	if err := s.events.Save(ctx, e); err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return errEventNotFound()
		}
		if errors.Is(err, eventrepo.ErrCapacityExceeded) && e.MaxParticipants != nil {
			return errEventFull(*e.MaxParticipants)
		}
		return err
	}
	return nil
}
