package domain

import "time"

// Child is a child listed on a parent profile. Age is derived from BirthDate.
type Child struct {
	Name      string
	BirthDate time.Time
	Gender    *string
	Interests []string
}

// AgeOn returns the child's age in whole years on the given date.
func (c Child) AgeOn(t time.Time) int {
	if c.BirthDate.IsZero() || t.Before(c.BirthDate) {
		return 0
	}
	by, bm, bd := c.BirthDate.UTC().Date()
	ty, tm, td := t.UTC().Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	return age
}

// Profile is a parent's user-facing identity record, distinct from the login account.
type Profile struct {
	ID     ProfileID
	UserID SubjectID

	FirstName string
	LastName  string
	Email     string

	Bio            *string
	Interests      []string
	Children       []Child
	Location       *GeoLocation
	ProfilePicture *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can never alias stored slices.
func (p Profile) Clone() Profile {
	out := p
	out.Bio = cloneStringPtr(p.Bio)
	out.ProfilePicture = cloneStringPtr(p.ProfilePicture)
	out.Location = cloneGeoLocation(p.Location)
	out.Interests = append([]string(nil), p.Interests...)
	if p.Children != nil {
		out.Children = make([]Child, 0, len(p.Children))
		for _, c := range p.Children {
			cc := c
			cc.Gender = cloneStringPtr(c.Gender)
			cc.Interests = append([]string(nil), c.Interests...)
			out.Children = append(out.Children, cc)
		}
	}
	return out
}

// ChildAgesOn returns each child's age on the given date, in profile order.
func (p Profile) ChildAgesOn(t time.Time) []int {
	out := make([]int, 0, len(p.Children))
	for _, c := range p.Children {
		out = append(out, c.AgeOn(t))
	}
	return out
}
