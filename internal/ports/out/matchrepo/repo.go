package matchrepo

import (
	"context"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Repository provides access to persisted matches.
//
// At most one match may exist per unordered pair of profiles; Create enforces this
// and returns ErrPairExists when the pair is taken.
type Repository interface {
	Create(ctx context.Context, m domain.Match) error
	Update(ctx context.Context, m domain.Match) error

	GetByID(ctx context.Context, id domain.MatchID) (domain.Match, error)

	// FindByPair returns the match initiated by initiator towards target (direction matters).
	FindByPair(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, error)

	// FindByPairEitherOrder returns the match between a and b regardless of who initiated it.
	FindByPairEitherOrder(ctx context.Context, a, b domain.ProfileID) (domain.Match, error)

	// ListByProfile returns matches where id is either party. A nil status lists all statuses.
	// No ordering is guaranteed.
	ListByProfile(ctx context.Context, id domain.ProfileID, status *domain.MatchStatus) ([]domain.Match, error)
}
