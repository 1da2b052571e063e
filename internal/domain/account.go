package domain

import "time"

// Account is the login identity. Its ID is the subject of issued access tokens.
type Account struct {
	ID           AccountID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subject returns the token subject for this account.
func (a Account) Subject() SubjectID { return SubjectID(a.ID) }
