package accountrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/kinship-labs/parent-match-api/internal/adapters/postgres"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
)

// Repo is a Postgres implementation of accountrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const accountColumns = `id, email, password_hash, first_name, last_name, is_active, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, a domain.Account) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(a.ID))
	if err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		domain.NormalizeEmail(a.Email),
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		a.IsActive,
		a.CreatedAt.UTC(),
		a.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "accounts_email_unique":
				return accountrepo.ErrEmailTaken
			case "accounts_pkey":
				return accountrepo.ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if r.pool == nil {
		return domain.Account{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Account{}, accountrepo.ErrNotFound
	}
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uid))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	if r.pool == nil {
		return domain.Account{}, errors.New("nil postgres pool")
	}
	return scanAccount(r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1
	`, domain.NormalizeEmail(email)))
}

func scanAccount(row postgres.Scanner) (domain.Account, error) {
	var (
		id                   uuid.UUID
		a                    domain.Account
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.IsActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, accountrepo.ErrNotFound
		}
		return domain.Account{}, err
	}
	a.ID = domain.AccountID(id.String())
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	return a, nil
}
