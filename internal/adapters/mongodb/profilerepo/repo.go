package profilerepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

// Repo is a MongoDB implementation of profilerepo.Repository.
// Locations are stored as GeoJSON points under a 2dsphere index.
type Repo struct {
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection(mongodb.ProfilesCollection)}
}

type childDoc struct {
	Name      string    `bson:"name"`
	BirthDate time.Time `bson:"birthDate"`
	Gender    *string   `bson:"gender,omitempty"`
	Interests []string  `bson:"interests"`
}

type profileDoc struct {
	ID             string            `bson:"_id"`
	UserID         string            `bson:"userId"`
	FirstName      string            `bson:"firstName"`
	LastName       string            `bson:"lastName"`
	Email          string            `bson:"email"`
	Bio            *string           `bson:"bio,omitempty"`
	Interests      []string          `bson:"interests"`
	Children       []childDoc        `bson:"children"`
	Location       *mongodb.GeoPoint `bson:"location,omitempty"`
	Address        *string           `bson:"address,omitempty"`
	ProfilePicture *string           `bson:"profilePicture,omitempty"`
	CreatedAt      time.Time         `bson:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt"`

	// Populated by $geoNear only.
	Distance float64 `bson:"distance,omitempty"`
}

func toDoc(p domain.Profile) profileDoc {
	d := profileDoc{
		ID:             string(p.ID),
		UserID:         string(p.UserID),
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Bio:            p.Bio,
		Interests:      append([]string{}, p.Interests...),
		Children:       make([]childDoc, 0, len(p.Children)),
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	for _, c := range p.Children {
		d.Children = append(d.Children, childDoc{
			Name:      c.Name,
			BirthDate: c.BirthDate.UTC(),
			Gender:    c.Gender,
			Interests: append([]string{}, c.Interests...),
		})
	}
	if p.Location != nil {
		pt := mongodb.NewGeoPoint(p.Location.Longitude, p.Location.Latitude)
		d.Location = &pt
		d.Address = p.Location.Address
	}
	return d
}

func (d profileDoc) toDomain() domain.Profile {
	p := domain.Profile{
		ID:             domain.ProfileID(d.ID),
		UserID:         domain.SubjectID(d.UserID),
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Bio:            d.Bio,
		Interests:      append([]string{}, d.Interests...),
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if len(d.Children) > 0 {
		p.Children = make([]domain.Child, 0, len(d.Children))
		for _, c := range d.Children {
			p.Children = append(p.Children, domain.Child{
				Name:      c.Name,
				BirthDate: c.BirthDate.UTC(),
				Gender:    c.Gender,
				Interests: append([]string{}, c.Interests...),
			})
		}
	}
	if d.Location != nil {
		p.Location = &domain.GeoLocation{
			Longitude: d.Location.Coordinates[0],
			Latitude:  d.Location.Coordinates[1],
			Address:   d.Address,
		}
	}
	return p
}

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	_, err := r.coll.InsertOne(ctx, toDoc(p))
	switch {
	case err == nil:
		return nil
	case mongodb.IsDuplicateOn(err, mongodb.ProfileUserIndex):
		return profilerepo.ErrUserAlreadyBound
	case mongodb.IsDuplicateID(err):
		return profilerepo.ErrAlreadyExists
	default:
		return err
	}
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	doc := toDoc(p)
	// The owning user never changes; filtering on it keeps a foreign profile untouched.
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "userId": doc.UserID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return err
		}
		if n > 0 {
			return profilerepo.ErrUserAlreadyBound
		}
		return profilerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *Repo) GetByUserID(ctx context.Context, userID domain.SubjectID) (domain.Profile, error) {
	return r.findOne(ctx, bson.M{"userId": string(userID)})
}

func (r *Repo) findOne(ctx context.Context, filter bson.M) (domain.Profile, error) {
	if r.coll == nil {
		return domain.Profile{}, errors.New("nil mongo collection")
	}
	var d profileDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Profile{}, profilerepo.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64) ([]profilerepo.Nearby, error) {
	if r.coll == nil {
		return nil, errors.New("nil mongo collection")
	}
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: mongodb.NewGeoPoint(lon, lat)},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: maxMeters},
			{Key: "spherical", Value: true},
			{Key: "key", Value: "location"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]profilerepo.Nearby, 0, len(docs))
	for _, d := range docs {
		out = append(out, profilerepo.Nearby{Profile: d.toDomain(), DistanceMeters: d.Distance})
	}
	return out, nil
}
