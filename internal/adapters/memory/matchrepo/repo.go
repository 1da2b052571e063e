package matchrepo

import (
	"context"
	"sync"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
)

// Repo is an in-memory implementation of matchrepo.Repository.
// It is safe for concurrent use. The pair index mirrors the unique pair constraint
// of the database adapters.
type Repo struct {
	mu sync.RWMutex

	byID     map[domain.MatchID]domain.Match
	idByPair map[string]domain.MatchID
}

func NewRepo() *Repo {
	return &Repo{
		byID:     make(map[domain.MatchID]domain.Match),
		idByPair: make(map[string]domain.MatchID),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.Match) error {
	_ = ctx
	if m.ID == "" {
		return matchrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return matchrepo.ErrAlreadyExists
	}
	key := m.PairKey()
	if _, ok := r.idByPair[key]; ok {
		return matchrepo.ErrPairExists
	}
	r.byID[m.ID] = m
	r.idByPair[key] = m.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.Match) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		return matchrepo.ErrNotFound
	}
	// Parties are immutable; only status and timestamps change.
	existing.Status = m.Status
	existing.UpdatedAt = m.UpdatedAt
	r.byID[m.ID] = existing
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MatchID) (domain.Match, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) FindByPair(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, error) {
	m, err := r.FindByPairEitherOrder(ctx, initiator, target)
	if err != nil {
		return domain.Match{}, err
	}
	if m.InitiatorID != initiator {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) FindByPairEitherOrder(ctx context.Context, a, b domain.ProfileID) (domain.Match, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByPair[domain.PairKey(a, b)]
	if !ok {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	m, ok := r.byID[id]
	if !ok {
		return domain.Match{}, matchrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) ListByProfile(ctx context.Context, id domain.ProfileID, status *domain.MatchStatus) ([]domain.Match, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Match, 0)
	for _, m := range r.byID {
		if !m.Involves(id) {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
