package messagerepo

import (
	"context"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

// Repository provides access to persisted messages.
type Repository interface {
	Create(ctx context.Context, m domain.Message) error
	Update(ctx context.Context, m domain.Message) error

	GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error)

	// ListConversation returns all messages between a and b in either direction,
	// ordered by SentAt ascending (ties broken by ID).
	ListConversation(ctx context.Context, a, b domain.ProfileID) ([]domain.Message, error)

	// CountUnread counts unread messages addressed to receiver.
	CountUnread(ctx context.Context, receiver domain.ProfileID) (int64, error)
}
