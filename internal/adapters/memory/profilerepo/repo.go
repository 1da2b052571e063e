package profilerepo

import (
	"context"
	"sort"
	"sync"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

// Repo is an in-memory implementation of profilerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID     map[domain.ProfileID]domain.Profile
	idByUser map[domain.SubjectID]domain.ProfileID
}

func NewRepo() *Repo {
	return &Repo{
		byID:     make(map[domain.ProfileID]domain.Profile),
		idByUser: make(map[domain.SubjectID]domain.ProfileID),
	}
}

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	_ = ctx
	if p.ID == "" {
		return profilerepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return profilerepo.ErrAlreadyExists
	}
	if _, ok := r.idByUser[p.UserID]; ok {
		return profilerepo.ErrUserAlreadyBound
	}
	r.byID[p.ID] = p.Clone()
	r.idByUser[p.UserID] = p.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[p.ID]
	if !ok {
		return profilerepo.ErrNotFound
	}
	// Owner binding is immutable.
	if existing.UserID != p.UserID {
		return profilerepo.ErrUserAlreadyBound
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *Repo) GetByUserID(ctx context.Context, userID domain.SubjectID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByUser[userID]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64) ([]profilerepo.Nearby, error) {
	_ = ctx
	origin := domain.GeoLocation{Latitude: lat, Longitude: lon}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]profilerepo.Nearby, 0)
	for _, p := range r.byID {
		if p.Location == nil {
			continue
		}
		d := domain.DistanceMeters(origin, *p.Location)
		if d > maxMeters {
			continue
		}
		out = append(out, profilerepo.Nearby{Profile: p.Clone(), DistanceMeters: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters == out[j].DistanceMeters {
			return out[i].Profile.ID < out[j].Profile.ID
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}
