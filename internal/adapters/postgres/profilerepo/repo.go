package profilerepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/kinship-labs/parent-match-api/internal/adapters/postgres"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

// Repo is a Postgres implementation of profilerepo.Repository.
// Interests and children are stored as JSONB; location as nullable lat/lon columns.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const profileColumns = `
	id, user_id, first_name, last_name, email, bio, interests, children,
	latitude, longitude, address, profile_picture, created_at, updated_at`

// childRow is the JSONB shape of a child.
type childRow struct {
	Name      string   `json:"name"`
	BirthDate string   `json:"birthDate"`
	Gender    *string  `json:"gender,omitempty"`
	Interests []string `json:"interests"`
}

const birthDateLayout = "2006-01-02"

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid profile id: %w", err)
	}
	args, err := profileArgs(p)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, append([]any{id, string(p.UserID)}, args...)...)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "profiles_user_id_unique":
				return profilerepo.ErrUserAlreadyBound
			case "profiles_pkey":
				return profilerepo.ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return profilerepo.ErrNotFound
	}
	args, err := profileArgs(p)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var owner string
		if err := tx.QueryRow(ctx, `SELECT user_id FROM profiles WHERE id = $1 FOR UPDATE`, id).Scan(&owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return profilerepo.ErrNotFound
			}
			return err
		}
		if owner != string(p.UserID) {
			return profilerepo.ErrUserAlreadyBound
		}

		ct, err := tx.Exec(ctx, `
			UPDATE profiles
			SET first_name = $2,
			    last_name = $3,
			    email = $4,
			    bio = $5,
			    interests = $6,
			    children = $7,
			    latitude = $8,
			    longitude = $9,
			    address = $10,
			    profile_picture = $11,
			    updated_at = $12
			WHERE id = $1
		`, append(append([]any{id}, args[:10]...), args[11])...)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return profilerepo.ErrNotFound
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	if r.pool == nil {
		return domain.Profile{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, uid)
	return scanProfile(row)
}

func (r *Repo) GetByUserID(ctx context.Context, userID domain.SubjectID) (domain.Profile, error) {
	if r.pool == nil {
		return domain.Profile{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, string(userID))
	return scanProfile(row)
}

func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64) ([]profilerepo.Nearby, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`, distance_m
		FROM (
			SELECT `+profileColumns+`, `+postgres.HaversineSQL("latitude", "longitude", 1, 2)+` AS distance_m
			FROM profiles
			WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		) p
		WHERE distance_m <= $3
		ORDER BY distance_m ASC, id ASC
	`, lon, lat, maxMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]profilerepo.Nearby, 0)
	for rows.Next() {
		var d float64
		p, err := scanProfileWith(rows, &d)
		if err != nil {
			return nil, err
		}
		out = append(out, profilerepo.Nearby{Profile: p, DistanceMeters: d})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// profileArgs returns the bind values for columns 3..14 of profileColumns.
func profileArgs(p domain.Profile) ([]any, error) {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	interestsJSON, err := json.Marshal(interests)
	if err != nil {
		return nil, fmt.Errorf("encode interests: %w", err)
	}
	children := make([]childRow, 0, len(p.Children))
	for _, c := range p.Children {
		ci := c.Interests
		if ci == nil {
			ci = []string{}
		}
		children = append(children, childRow{
			Name:      c.Name,
			BirthDate: c.BirthDate.UTC().Format(birthDateLayout),
			Gender:    c.Gender,
			Interests: ci,
		})
	}
	childrenJSON, err := json.Marshal(children)
	if err != nil {
		return nil, fmt.Errorf("encode children: %w", err)
	}

	var lat, lon *float64
	var addr *string
	if p.Location != nil {
		la, lo := p.Location.Latitude, p.Location.Longitude
		lat, lon, addr = &la, &lo, p.Location.Address
	}
	return []any{
		p.FirstName,
		p.LastName,
		p.Email,
		p.Bio,
		interestsJSON,
		childrenJSON,
		lat,
		lon,
		addr,
		p.ProfilePicture,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	}, nil
}

func scanProfile(row postgres.Scanner) (domain.Profile, error) {
	return scanProfileWith(row)
}

func scanProfileWith(row postgres.Scanner, extra ...any) (domain.Profile, error) {
	var (
		id             uuid.UUID
		userID         string
		firstName      string
		lastName       string
		email          string
		bio            *string
		interestsJSON  []byte
		childrenJSON   []byte
		lat            *float64
		lon            *float64
		addr           *string
		profilePicture *string
		createdAt      time.Time
		updatedAt      time.Time
	)
	dest := []any{
		&id, &userID, &firstName, &lastName, &email, &bio, &interestsJSON, &childrenJSON,
		&lat, &lon, &addr, &profilePicture, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, profilerepo.ErrNotFound
		}
		return domain.Profile{}, err
	}

	var interests []string
	if err := json.Unmarshal(interestsJSON, &interests); err != nil {
		return domain.Profile{}, fmt.Errorf("decode interests: %w", err)
	}
	var rows []childRow
	if err := json.Unmarshal(childrenJSON, &rows); err != nil {
		return domain.Profile{}, fmt.Errorf("decode children: %w", err)
	}
	var children []domain.Child
	for _, c := range rows {
		bd, err := time.Parse(birthDateLayout, c.BirthDate)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("decode child birthDate: %w", err)
		}
		children = append(children, domain.Child{
			Name:      c.Name,
			BirthDate: bd,
			Gender:    c.Gender,
			Interests: c.Interests,
		})
	}

	var loc *domain.GeoLocation
	if lat != nil && lon != nil {
		loc = &domain.GeoLocation{Latitude: *lat, Longitude: *lon, Address: addr}
	}

	return domain.Profile{
		ID:             domain.ProfileID(id.String()),
		UserID:         domain.SubjectID(userID),
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		Bio:            bio,
		Interests:      interests,
		Children:       children,
		Location:       loc,
		ProfilePicture: profilePicture,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      updatedAt.UTC(),
	}, nil
}
