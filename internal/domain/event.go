package domain

import "time"

// Event is an organizer-owned gathering that profiles can join.
//
// Event values are snapshots: the participant helpers below never mutate the receiver's
// backing array, so a value handed out by a repository cannot be changed by a later write.
type Event struct {
	ID          EventID
	OrganizerID ProfileID

	Title       string
	Description string
	Location    GeoLocation
	DateTime    time.Time

	ParticipantIDs  []ProfileID
	MaxParticipants *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Event) HasParticipant(id ProfileID) bool {
	for _, p := range e.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}

// IsFull reports whether the event has reached its participant limit.
func (e Event) IsFull() bool {
	return e.MaxParticipants != nil && len(e.ParticipantIDs) >= *e.MaxParticipants
}

// WithParticipant returns a copy of e with id appended to the participant list.
func (e Event) WithParticipant(id ProfileID) Event {
	out := e.Clone()
	out.ParticipantIDs = append(out.ParticipantIDs, id)
	return out
}

// WithoutParticipant returns a copy of e with id removed from the participant list.
func (e Event) WithoutParticipant(id ProfileID) Event {
	out := e.Clone()
	ps := make([]ProfileID, 0, len(e.ParticipantIDs))
	for _, p := range e.ParticipantIDs {
		if p != id {
			ps = append(ps, p)
		}
	}
	out.ParticipantIDs = ps
	return out
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	out := e
	out.ParticipantIDs = append(make([]ProfileID, 0, len(e.ParticipantIDs)+1), e.ParticipantIDs...)
	out.Location.Address = cloneStringPtr(e.Location.Address)
	if e.MaxParticipants != nil {
		v := *e.MaxParticipants
		out.MaxParticipants = &v
	}
	return out
}
