package eventrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

// Repo is an in-memory implementation of eventrepo.Repository.
// It is safe for concurrent use. Events are cloned on the way in and out so the
// stored participant list is never shared with a caller.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.EventID]domain.Event
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.EventID]domain.Event)}
}

func (r *Repo) Create(ctx context.Context, e domain.Event) error {
	_ = ctx
	if e.ID == "" {
		return eventrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[e.ID]; ok {
		return eventrepo.ErrAlreadyExists
	}
	r.byID[e.ID] = e.Clone()
	return nil
}

func (r *Repo) Save(ctx context.Context, e domain.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[e.ID]
	if !ok {
		return eventrepo.ErrNotFound
	}
	if e.MaxParticipants != nil && len(cur.ParticipantIDs) > *e.MaxParticipants {
		return eventrepo.ErrCapacityExceeded
	}
	next := e.Clone()
	next.ParticipantIDs = cur.ParticipantIDs
	r.byID[e.ID] = next.Clone()
	return nil
}

func (r *Repo) AddParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	if e.HasParticipant(profile) {
		return e.Clone(), nil
	}
	if e.IsFull() {
		return domain.Event{}, eventrepo.ErrCapacityExceeded
	}
	next := e.WithParticipant(profile)
	next.UpdatedAt = at
	r.byID[id] = next
	return next.Clone(), nil
}

func (r *Repo) RemoveParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	if !e.HasParticipant(profile) {
		return e.Clone(), nil
	}
	next := e.WithoutParticipant(profile)
	next.UpdatedAt = at
	r.byID[id] = next
	return next.Clone(), nil
}

func (r *Repo) Delete(ctx context.Context, id domain.EventID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return eventrepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (domain.Event, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return domain.Event{}, eventrepo.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *Repo) ListUpcoming(ctx context.Context, after time.Time) ([]domain.Event, error) {
	return r.filter(ctx, func(e domain.Event) bool { return e.DateTime.After(after) }), nil
}

func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64, after time.Time) ([]domain.Event, error) {
	_ = ctx
	origin := domain.GeoLocation{Latitude: lat, Longitude: lon}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type hit struct {
		e domain.Event
		d float64
	}
	hits := make([]hit, 0)
	for _, e := range r.byID {
		if !e.DateTime.After(after) {
			continue
		}
		d := domain.DistanceMeters(origin, e.Location)
		if d > maxMeters {
			continue
		}
		hits = append(hits, hit{e: e.Clone(), d: d})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].d == hits[j].d {
			return hits[i].e.ID < hits[j].e.ID
		}
		return hits[i].d < hits[j].d
	})
	out := make([]domain.Event, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.e)
	}
	return out, nil
}

func (r *Repo) ListByOrganizer(ctx context.Context, organizer domain.ProfileID) ([]domain.Event, error) {
	return r.filter(ctx, func(e domain.Event) bool { return e.OrganizerID == organizer }), nil
}

func (r *Repo) ListByParticipant(ctx context.Context, participant domain.ProfileID) ([]domain.Event, error) {
	return r.filter(ctx, func(e domain.Event) bool { return e.HasParticipant(participant) }), nil
}

func (r *Repo) filter(ctx context.Context, keep func(domain.Event) bool) []domain.Event {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Event, 0)
	for _, e := range r.byID {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sortByDateTime(out)
	return out
}

func sortByDateTime(es []domain.Event) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].DateTime.Equal(es[j].DateTime) {
			return es[i].ID < es[j].ID
		}
		return es[i].DateTime.Before(es[j].DateTime)
	})
}
