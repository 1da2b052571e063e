package messagerepo

import (
	"context"
	"sort"
	"sync"

	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

// Repo is an in-memory implementation of messagerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.MessageID]domain.Message
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.MessageID]domain.Message)}
}

func (r *Repo) Create(ctx context.Context, m domain.Message) error {
	_ = ctx
	if m.ID == "" {
		return messagerepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return messagerepo.ErrAlreadyExists
	}
	r.byID[m.ID] = m
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.Message) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[m.ID]
	if !ok {
		return messagerepo.ErrNotFound
	}
	// Only the read flag is mutable.
	existing.Read = m.Read
	r.byID[m.ID] = existing
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.Message{}, messagerepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) ListConversation(ctx context.Context, a, b domain.ProfileID) ([]domain.Message, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, m := range r.byID {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out, nil
}

func (r *Repo) CountUnread(ctx context.Context, receiver domain.ProfileID) (int64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.byID {
		if m.ReceiverID == receiver && !m.Read {
			n++
		}
	}
	return n, nil
}
