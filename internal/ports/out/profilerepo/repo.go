package profilerepo

import (
	"context"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Nearby is a profile returned by a proximity query together with its distance from the query point.
type Nearby struct {
	Profile        domain.Profile
	DistanceMeters float64
}

// Repository provides access to persisted parent profiles.
//
// Implementations must return deep copies; callers may mutate what they receive.
type Repository interface {
	Create(ctx context.Context, p domain.Profile) error
	Update(ctx context.Context, p domain.Profile) error

	GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error)
	GetByUserID(ctx context.Context, userID domain.SubjectID) (domain.Profile, error)

	// FindNear returns profiles with a location within maxMeters of (lon, lat),
	// ordered by distance ascending. Profiles without a location are never returned.
	FindNear(ctx context.Context, lon, lat float64, maxMeters float64) ([]Nearby, error)
}
