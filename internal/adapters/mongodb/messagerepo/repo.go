package messagerepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
)

// Repo is a MongoDB implementation of messagerepo.Repository.
type Repo struct {
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection(mongodb.MessagesCollection)}
}

type messageDoc struct {
	ID         string    `bson:"_id"`
	SenderID   string    `bson:"senderId"`
	ReceiverID string    `bson:"receiverId"`
	Content    string    `bson:"content"`
	SentAt     time.Time `bson:"sentAt"`
	Read       bool      `bson:"read"`
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:         domain.MessageID(d.ID),
		SenderID:   domain.ProfileID(d.SenderID),
		ReceiverID: domain.ProfileID(d.ReceiverID),
		Content:    d.Content,
		SentAt:     d.SentAt.UTC(),
		Read:       d.Read,
	}
}

func (r *Repo) Create(ctx context.Context, m domain.Message) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	_, err := r.coll.InsertOne(ctx, messageDoc{
		ID:         string(m.ID),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		Content:    m.Content,
		SentAt:     m.SentAt.UTC(),
		Read:       m.Read,
	})
	if mongodb.IsDuplicateID(err) {
		return messagerepo.ErrAlreadyExists
	}
	return err
}

// Update persists the read flag; message content is immutable.
func (r *Repo) Update(ctx context.Context, m domain.Message) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	res, err := r.coll.UpdateByID(ctx, string(m.ID), bson.M{"$set": bson.M{"read": m.Read}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return messagerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	if r.coll == nil {
		return domain.Message{}, errors.New("nil mongo collection")
	}
	var d messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Message{}, messagerepo.ErrNotFound
		}
		return domain.Message{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) ListConversation(ctx context.Context, a, b domain.ProfileID) ([]domain.Message, error) {
	if r.coll == nil {
		return nil, errors.New("nil mongo collection")
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": string(a), "receiverId": string(b)},
		bson.M{"senderId": string(b), "receiverId": string(a)},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "sentAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *Repo) CountUnread(ctx context.Context, receiver domain.ProfileID) (int64, error) {
	if r.coll == nil {
		return 0, errors.New("nil mongo collection")
	}
	return r.coll.CountDocuments(ctx, bson.M{"receiverId": string(receiver), "read": false})
}
