package accountrepo

import (
	"context"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Repository provides access to login accounts.
//
// Emails are stored normalized (see domain.NormalizeEmail) and are unique.
type Repository interface {
	Create(ctx context.Context, a domain.Account) error
	GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
}
