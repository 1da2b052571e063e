package eventrepo

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
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

// Repo is a Postgres implementation of eventrepo.Repository.
// Participants live in a uuid[] column that only AddParticipant and RemoveParticipant
// modify; the events_capacity check constraint rejects lowering max_participants below it.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const eventColumns = `
	id, organizer_id, title, description, latitude, longitude, address, date_time,
	participant_ids::text[], max_participants, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, e domain.Event) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	organizer, err := uuid.Parse(string(e.OrganizerID))
	if err != nil {
		return fmt.Errorf("invalid organizer id: %w", err)
	}
	participants, err := participantArgs(e.ParticipantIDs)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO events (
			id, organizer_id, title, description, latitude, longitude, address, date_time,
			participant_ids, max_participants, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid[], $10, $11, $12)
	`,
		id,
		organizer,
		e.Title,
		e.Description,
		e.Location.Latitude,
		e.Location.Longitude,
		e.Location.Address,
		e.DateTime.UTC(),
		participants,
		e.MaxParticipants,
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "events_pkey") {
			return eventrepo.ErrAlreadyExists
		}
		return mapCheck(err)
	}
	return nil
}

// Save leaves participant_ids untouched so it cannot race with joins and leaves.
func (r *Repo) Save(ctx context.Context, e domain.Event) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return eventrepo.ErrNotFound
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2,
		    description = $3,
		    latitude = $4,
		    longitude = $5,
		    address = $6,
		    date_time = $7,
		    max_participants = $8,
		    updated_at = $9
		WHERE id = $1
	`,
		id,
		e.Title,
		e.Description,
		e.Location.Latitude,
		e.Location.Longitude,
		e.Location.Address,
		e.DateTime.UTC(),
		e.MaxParticipants,
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapCheck(err)
	}
	if ct.RowsAffected() == 0 {
		return eventrepo.ErrNotFound
	}
	return nil
}

// AddParticipant relies on row locking: a concurrent UPDATE re-evaluates the
// capacity and membership predicates against the committed row.
func (r *Repo) AddParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	if r.pool == nil {
		return domain.Event{}, errors.New("nil postgres pool")
	}
	eid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	pid, err := uuid.Parse(string(profile))
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid participant id %q: %w", profile, err)
	}

	e, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE events
		SET participant_ids = array_append(participant_ids, $2),
		    updated_at = $3
		WHERE id = $1
		  AND NOT ($2 = ANY(participant_ids))
		  AND (max_participants IS NULL OR cardinality(participant_ids) < max_participants)
		RETURNING `+eventColumns,
		eid, pid, at.UTC(),
	))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, eventrepo.ErrNotFound) {
		return domain.Event{}, mapCheck(err)
	}

	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if cur.HasParticipant(domain.ProfileID(pid.String())) {
		return cur, nil
	}
	return domain.Event{}, eventrepo.ErrCapacityExceeded
}

func (r *Repo) RemoveParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	if r.pool == nil {
		return domain.Event{}, errors.New("nil postgres pool")
	}
	eid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	pid, err := uuid.Parse(string(profile))
	if err != nil {
		return r.GetByID(ctx, id)
	}

	e, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE events
		SET participant_ids = array_remove(participant_ids, $2),
		    updated_at = $3
		WHERE id = $1 AND $2 = ANY(participant_ids)
		RETURNING `+eventColumns,
		eid, pid, at.UTC(),
	))
	if errors.Is(err, eventrepo.ErrNotFound) {
		return r.GetByID(ctx, id)
	}
	return e, err
}

func (r *Repo) Delete(ctx context.Context, id domain.EventID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return eventrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return eventrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (domain.Event, error) {
	if r.pool == nil {
		return domain.Event{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, uid))
}

func (r *Repo) ListUpcoming(ctx context.Context, after time.Time) ([]domain.Event, error) {
	return r.list(ctx, `WHERE date_time > $1 ORDER BY date_time ASC, id ASC`, after.UTC())
}

func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64, after time.Time) ([]domain.Event, error) {
	return r.list(ctx, `
		WHERE date_time > $4
		  AND `+postgres.HaversineSQL("latitude", "longitude", 1, 2)+` <= $3
		ORDER BY `+postgres.HaversineSQL("latitude", "longitude", 1, 2)+` ASC, id ASC
	`, lon, lat, maxMeters, after.UTC())
}

func (r *Repo) ListByOrganizer(ctx context.Context, organizer domain.ProfileID) ([]domain.Event, error) {
	uid, err := uuid.Parse(string(organizer))
	if err != nil {
		return []domain.Event{}, nil
	}
	return r.list(ctx, `WHERE organizer_id = $1 ORDER BY date_time ASC, id ASC`, uid)
}

func (r *Repo) ListByParticipant(ctx context.Context, participant domain.ProfileID) ([]domain.Event, error) {
	uid, err := uuid.Parse(string(participant))
	if err != nil {
		return []domain.Event{}, nil
	}
	return r.list(ctx, `WHERE $1 = ANY(participant_ids) ORDER BY date_time ASC, id ASC`, uid)
}

func (r *Repo) list(ctx context.Context, tail string, args ...any) ([]domain.Event, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func participantArgs(ids []domain.ProfileID) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(string(id)); err != nil {
			return nil, fmt.Errorf("invalid participant id %q: %w", id, err)
		}
		out = append(out, string(id))
	}
	return out, nil
}

func mapCheck(err error) error {
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.CheckViolationCode && pe.ConstraintName == "events_capacity" {
		return eventrepo.ErrCapacityExceeded
	}
	return err
}

func scanEvent(row postgres.Scanner) (domain.Event, error) {
	var (
		id, organizer        uuid.UUID
		title, description   string
		lat, lon             float64
		addr                 *string
		dateTime             time.Time
		participants         []string
		maxParticipants      *int32
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(
		&id, &organizer, &title, &description, &lat, &lon, &addr, &dateTime,
		&participants, &maxParticipants, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, eventrepo.ErrNotFound
		}
		return domain.Event{}, err
	}
	e := domain.Event{
		ID:          domain.EventID(id.String()),
		OrganizerID: domain.ProfileID(organizer.String()),
		Title:       title,
		Description: description,
		Location:    domain.GeoLocation{Latitude: lat, Longitude: lon, Address: addr},
		DateTime:    dateTime.UTC(),
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}
	e.ParticipantIDs = make([]domain.ProfileID, 0, len(participants))
	for _, p := range participants {
		e.ParticipantIDs = append(e.ParticipantIDs, domain.ProfileID(p))
	}
	if maxParticipants != nil {
		v := int(*maxParticipants)
		e.MaxParticipants = &v
	}
	return e, nil
}
