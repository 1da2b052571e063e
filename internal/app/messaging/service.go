package messaging

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

type Service struct {
	messages messagerepo.Repository
	matches  matchrepo.Repository
	clk      clockport.Clock

	newMessageID func() domain.MessageID
}

func NewService(messages messagerepo.Repository, matches matchrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		messages: messages,
		matches:  matches,
		clk:      clk,
		newMessageID: func() domain.MessageID {
			return domain.MessageID(uuid.NewString())
		},
	}
}

// SetNewMessageIDForTest overrides message ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewMessageIDForTest(fn func() domain.MessageID) {
	if fn != nil {
		s.newMessageID = fn
	}
}

// CanMessage reports whether an accepted match exists between the two profiles.
func (s *Service) CanMessage(ctx context.Context, sender, receiver domain.ProfileID) (bool, error) {
	if sender == receiver {
		return false, nil
	}
	m, err := s.matches.FindByPairEitherOrder(ctx, sender, receiver)
	if err != nil {
		if errors.Is(err, matchrepo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Status == domain.MatchStatusAccepted, nil
}

func (s *Service) Send(ctx context.Context, sender, receiver domain.ProfileID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, apperr.Validation("invalid message", map[string]any{"content": "must be non-empty"})
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return domain.Message{}, apperr.Validation("invalid message", map[string]any{
			"content": "must be at most 4000 characters",
		})
	}

	ok, err := s.CanMessage(ctx, sender, receiver)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, apperr.Forbidden("NOT_MATCHED", "messages can only be sent to accepted matches")
	}

	m := domain.Message{
		ID:         s.newMessageID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		SentAt:     s.clk.Now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		if errors.Is(err, messagerepo.ErrAlreadyExists) {
			return domain.Message{}, apperr.Conflict("MESSAGE_ID_CONFLICT", "message id conflict")
		}
		return domain.Message{}, err
	}
	return m, nil
}

// MarkRead flags a message as read by its receiver. Marking twice is a no-op.
func (s *Service) MarkRead(ctx context.Context, id domain.MessageID, reader domain.ProfileID) (domain.Message, error) {
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, messagerepo.ErrNotFound) {
			return domain.Message{}, errMessageNotFound()
		}
		return domain.Message{}, err
	}
	if m.ReceiverID != reader {
		return domain.Message{}, apperr.Forbidden("NOT_MESSAGE_RECEIVER", "only the receiver can mark a message as read")
	}
	if m.Read {
		return m, nil
	}
	m.Read = true
	if err := s.messages.Update(ctx, m); err != nil {
		if errors.Is(err, messagerepo.ErrNotFound) {
			return domain.Message{}, errMessageNotFound()
		}
		return domain.Message{}, err
	}
	return m, nil
}

// Conversation returns every message exchanged between the two profiles, oldest first.
func (s *Service) Conversation(ctx context.Context, profile, other domain.ProfileID) ([]domain.Message, error) {
	return s.messages.ListConversation(ctx, profile, other)
}

func (s *Service) UnreadCount(ctx context.Context, profile domain.ProfileID) (int64, error) {
	return s.messages.CountUnread(ctx, profile)
}

func errMessageNotFound() *apperr.Error {
	return apperr.NotFound("MESSAGE_NOT_FOUND", "message not found")
}
