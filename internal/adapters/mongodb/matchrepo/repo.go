package matchrepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
)

// Repo is a MongoDB implementation of matchrepo.Repository.
// A unique index on pairKey enforces one match per unordered pair.
type Repo struct {
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection(mongodb.MatchesCollection)}
}

type matchDoc struct {
	ID          string    `bson:"_id"`
	InitiatorID string    `bson:"initiatorId"`
	TargetID    string    `bson:"targetId"`
	PairKey     string    `bson:"pairKey"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (d matchDoc) toDomain() domain.Match {
	return domain.Match{
		ID:          domain.MatchID(d.ID),
		InitiatorID: domain.ProfileID(d.InitiatorID),
		TargetID:    domain.ProfileID(d.TargetID),
		Status:      domain.MatchStatus(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.Match) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	_, err := r.coll.InsertOne(ctx, matchDoc{
		ID:          string(m.ID),
		InitiatorID: string(m.InitiatorID),
		TargetID:    string(m.TargetID),
		PairKey:     m.PairKey(),
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	})
	switch {
	case err == nil:
		return nil
	case mongodb.IsDuplicateOn(err, mongodb.MatchPairKeyIndex):
		return matchrepo.ErrPairExists
	case mongodb.IsDuplicateID(err):
		return matchrepo.ErrAlreadyExists
	default:
		return err
	}
}

// Update writes status and updated_at; the parties of a match never change.
func (r *Repo) Update(ctx context.Context, m domain.Match) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	res, err := r.coll.UpdateByID(ctx, string(m.ID), bson.M{"$set": bson.M{
		"status":    string(m.Status),
		"updatedAt": m.UpdatedAt.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return matchrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.MatchID) (domain.Match, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *Repo) FindByPair(ctx context.Context, initiator, target domain.ProfileID) (domain.Match, error) {
	return r.findOne(ctx, bson.M{"initiatorId": string(initiator), "targetId": string(target)})
}

func (r *Repo) FindByPairEitherOrder(ctx context.Context, a, b domain.ProfileID) (domain.Match, error) {
	return r.findOne(ctx, bson.M{"pairKey": domain.PairKey(a, b)})
}

func (r *Repo) ListByProfile(ctx context.Context, id domain.ProfileID, status *domain.MatchStatus) ([]domain.Match, error) {
	if r.coll == nil {
		return nil, errors.New("nil mongo collection")
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"initiatorId": string(id)},
		bson.M{"targetId": string(id)},
	}}
	if status != nil {
		filter["status"] = string(*status)
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []matchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Match, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (domain.Match, error) {
	if r.coll == nil {
		return domain.Match{}, errors.New("nil mongo collection")
	}
	var d matchDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Match{}, matchrepo.ErrNotFound
		}
		return domain.Match{}, err
	}
	return d.toDomain(), nil
}
