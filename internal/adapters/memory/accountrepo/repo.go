package accountrepo

import (
	"context"
	"sync"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
)

// Repo is an in-memory implementation of accountrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.AccountID]domain.Account
	idByEmail map[string]domain.AccountID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.AccountID]domain.Account),
		idByEmail: make(map[string]domain.AccountID),
	}
}

func (r *Repo) Create(ctx context.Context, a domain.Account) error {
	_ = ctx
	if a.ID == "" {
		return accountrepo.ErrAlreadyExists
	}
	email := domain.NormalizeEmail(a.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; ok {
		return accountrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[email]; ok {
		return accountrepo.ErrEmailTaken
	}
	a.Email = email
	r.byID[a.ID] = a
	r.idByEmail[email] = a.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.Account{}, accountrepo.ErrNotFound
	}
	return a, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, accountrepo.ErrNotFound
	}
	return r.byID[id], nil
}
