package messagerepo

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
	"github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

// Repo is a Postgres implementation of messagerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const messageColumns = `id, sender_id, receiver_id, content, sent_at, read`

func (r *Repo) Create(ctx context.Context, m domain.Message) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	sender, err := uuid.Parse(string(m.SenderID))
	if err != nil {
		return fmt.Errorf("invalid sender id: %w", err)
	}
	receiver, err := uuid.Parse(string(m.ReceiverID))
	if err != nil {
		return fmt.Errorf("invalid receiver id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
	`, id, sender, receiver, m.Content, m.SentAt.UTC(), m.Read)
	if err != nil {
		if postgres.IsUniqueViolation(err, "messages_pkey") {
			return messagerepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists the Read flag. Content and parties are immutable.
func (r *Repo) Update(ctx context.Context, m domain.Message) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(m.ID))
	if err != nil {
		return messagerepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `UPDATE messages SET read = $2 WHERE id = $1`, id, m.Read)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return messagerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	if r.pool == nil {
		return domain.Message{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Message{}, messagerepo.ErrNotFound
	}
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, uid))
}

func (r *Repo) ListConversation(ctx context.Context, a, b domain.ProfileID) ([]domain.Message, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	ua, errA := uuid.Parse(string(a))
	ub, errB := uuid.Parse(string(b))
	if errA != nil || errB != nil {
		return []domain.Message{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY sent_at ASC, id ASC
	`, ua, ub)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
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

func (r *Repo) CountUnread(ctx context.Context, receiver domain.ProfileID) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(receiver))
	if err != nil {
		return 0, nil
	}
	var n int64
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE receiver_id = $1 AND NOT read
	`, uid).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanMessage(row postgres.Scanner) (domain.Message, error) {
	var (
		id, sender, receiver uuid.UUID
		content              string
		sentAt               time.Time
		read                 bool
	)
	if err := row.Scan(&id, &sender, &receiver, &content, &sentAt, &read); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, messagerepo.ErrNotFound
		}
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         domain.MessageID(id.String()),
		SenderID:   domain.ProfileID(sender.String()),
		ReceiverID: domain.ProfileID(receiver.String()),
		Content:    content,
		SentAt:     sentAt.UTC(),
		Read:       read,
	}, nil
}
