package accountrepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
)

// Repo is a MongoDB implementation of accountrepo.Repository.
// Emails are stored normalized so the unique index is case-insensitive.
type Repo struct {
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection(mongodb.AccountsCollection)}
}

type accountDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	IsActive     bool      `bson:"isActive"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (r *Repo) Create(ctx context.Context, a domain.Account) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	_, err := r.coll.InsertOne(ctx, accountDoc{
		ID:           string(a.ID),
		Email:        domain.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		IsActive:     a.IsActive,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	})
	switch {
	case err == nil:
		return nil
	case mongodb.IsDuplicateOn(err, mongodb.AccountEmailIndex):
		return accountrepo.ErrEmailTaken
	case mongodb.IsDuplicateID(err):
		return accountrepo.ErrAlreadyExists
	default:
		return err
	}
}

func (r *Repo) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (domain.Account, error) {
	if r.coll == nil {
		return domain.Account{}, errors.New("nil mongo collection")
	}
	var d accountDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Account{}, accountrepo.ErrNotFound
		}
		return domain.Account{}, err
	}
	return domain.Account{
		ID:           domain.AccountID(d.ID),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}
