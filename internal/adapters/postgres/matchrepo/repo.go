package matchrepo

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
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
)

// Repo is a Postgres implementation of matchrepo.Repository.
// The matches_pair_key_unique constraint enforces one match per unordered pair.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const matchColumns = `id, initiator_id, target_id, status, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, m domain.Match) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid match id: %w", err)
	}
	initiator, target, err := parsePair(m.InitiatorID, m.TargetID)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO matches (id, initiator_id, target_id, pair_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		initiator,
		target,
		pairKey(initiator, target),
		string(m.Status),
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "matches_pair_key_unique":
				return matchrepo.ErrPairExists
			case "matches_pkey":
				return matchrepo.ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

// Update persists Status and UpdatedAt. The parties of a match never change.
func (r *Repo) Update(ctx context.Context, m domain.Match) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return matchrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE matches SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(m.Status), m.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return matchrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MatchID) (domain.Match, error) {
	if r.pool == nil {
		return domain.Match{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return scanMatch(r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, uid))
}

func (r *Repo) FindByPair(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, error) {
	if r.pool == nil {
		return domain.Match{}, errors.New("nil postgres pool")
	}
	i, t, err := parsePair(initiator, target)
	if err != nil {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return scanMatch(r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+` FROM matches WHERE initiator_id = $1 AND target_id = $2
	`, i, t))
}

func (r *Repo) FindByPairEitherOrder(ctx context.Context, a, b domain.ProfileID) (domain.Match, error) {
	if r.pool == nil {
		return domain.Match{}, errors.New("nil postgres pool")
	}
	ua, ub, err := parsePair(a, b)
	if err != nil {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return scanMatch(r.pool.QueryRow(ctx, `
		SELECT `+matchColumns+` FROM matches WHERE pair_key = $1
	`, pairKey(ua, ub)))
}

func (r *Repo) ListByProfile(ctx context.Context, id domain.ProfileID, status *domain.MatchStatus) ([]domain.Match, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return []domain.Match{}, nil
	}
	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE (initiator_id = $1 OR target_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at ASC, id ASC
	`, uid, statusArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parsePair(a, b domain.ProfileID) (uuid.UUID, uuid.UUID, error) {
	ua, err := uuid.Parse(string(a))
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, fmt.Errorf("invalid profile id: %w", err)
	}
	ub, err := uuid.Parse(string(b))
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, fmt.Errorf("invalid profile id: %w", err)
	}
	return ua, ub, nil
}

// pairKey builds the unordered key from parsed ids so that every textual form
// uuid.Parse accepts (upper case, braces, urn prefix) maps to the same key.
func pairKey(a, b uuid.UUID) string {
	return domain.PairKey(domain.ProfileID(a.String()), domain.ProfileID(b.String()))
}

func scanMatch(row postgres.Scanner) (domain.Match, error) {
	var (
		id, initiator, target uuid.UUID
		status                string
		createdAt, updatedAt  time.Time
	)
	if err := row.Scan(&id, &initiator, &target, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Match{}, matchrepo.ErrNotFound
		}
		return domain.Match{}, err
	}
	return domain.Match{
		ID:          domain.MatchID(id.String()),
		InitiatorID: domain.ProfileID(initiator.String()),
		TargetID:    domain.ProfileID(target.String()),
		Status:      domain.MatchStatus(status),
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}
