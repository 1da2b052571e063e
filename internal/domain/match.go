package domain

import "time"

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "PENDING"
	MatchStatusAccepted MatchStatus = "ACCEPTED"
	MatchStatusRejected MatchStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusRejected:
		return true
	default:
		return false
	}
}

// Match is the relationship record between the profile that liked first (initiator)
// and the profile that was liked (target).
type Match struct {
	ID          MatchID
	InitiatorID ProfileID
	TargetID    ProfileID
	Status      MatchStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PairKey is the canonical key for the unordered pair of profiles.
// Storage adapters put a uniqueness constraint on it.
func PairKey(a, b ProfileID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

// PairKey returns the canonical unordered key for this match.
func (m Match) PairKey() string { return PairKey(m.InitiatorID, m.TargetID) }

// Involves reports whether id is either party of the match.
func (m Match) Involves(id ProfileID) bool {
	return m.InitiatorID == id || m.TargetID == id
}

// Counterpart returns the other party relative to id.
func (m Match) Counterpart(id ProfileID) ProfileID {
	if m.InitiatorID == id {
		return m.TargetID
	}
	return m.InitiatorID
}
