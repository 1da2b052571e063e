package domain

// SubjectID is the authenticated subject extracted from JWT claims ("sub").
// For tokens minted by this service it is the account ID.
type SubjectID string

// AccountID is an internal identifier for a login account.
type AccountID string

// ProfileID is an internal identifier for a parent profile.
type ProfileID string

// MatchID is an internal identifier for a match record.
type MatchID string

// MessageID is an internal identifier for a message.
type MessageID string

// EventID is an internal identifier for an event.
type EventID string
