package eventrepo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
)

// Repo is a MongoDB implementation of eventrepo.Repository.
type Repo struct {
	coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{coll: db.Collection(mongodb.EventsCollection)}
}

type eventDoc struct {
	ID              string           `bson:"_id"`
	OrganizerID     string           `bson:"organizerId"`
	Title           string           `bson:"title"`
	Description     string           `bson:"description"`
	Location        mongodb.GeoPoint `bson:"location"`
	Address         *string          `bson:"address,omitempty"`
	DateTime        time.Time        `bson:"dateTime"`
	ParticipantIDs  []string         `bson:"participantIds"`
	MaxParticipants *int             `bson:"maxParticipants,omitempty"`
	CreatedAt       time.Time        `bson:"createdAt"`
	UpdatedAt       time.Time        `bson:"updatedAt"`
}

func toDoc(e domain.Event) eventDoc {
	d := eventDoc{
		ID:              string(e.ID),
		OrganizerID:     string(e.OrganizerID),
		Title:           e.Title,
		Description:     e.Description,
		Location:        mongodb.NewGeoPoint(e.Location.Longitude, e.Location.Latitude),
		Address:         e.Location.Address,
		DateTime:        e.DateTime.UTC(),
		ParticipantIDs:  make([]string, 0, len(e.ParticipantIDs)),
		MaxParticipants: e.MaxParticipants,
		CreatedAt:       e.CreatedAt.UTC(),
		UpdatedAt:       e.UpdatedAt.UTC(),
	}
	for _, p := range e.ParticipantIDs {
		d.ParticipantIDs = append(d.ParticipantIDs, string(p))
	}
	return d
}

func (d eventDoc) toDomain() domain.Event {
	e := domain.Event{
		ID:          domain.EventID(d.ID),
		OrganizerID: domain.ProfileID(d.OrganizerID),
		Title:       d.Title,
		Description: d.Description,
		Location: domain.GeoLocation{
			Longitude: d.Location.Coordinates[0],
			Latitude:  d.Location.Coordinates[1],
			Address:   d.Address,
		},
		DateTime:        d.DateTime.UTC(),
		ParticipantIDs:  make([]domain.ProfileID, 0, len(d.ParticipantIDs)),
		MaxParticipants: d.MaxParticipants,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	for _, p := range d.ParticipantIDs {
		e.ParticipantIDs = append(e.ParticipantIDs, domain.ProfileID(p))
	}
	return e
}

func overCapacity(e domain.Event) bool {
	return e.MaxParticipants != nil && len(e.ParticipantIDs) > *e.MaxParticipants
}

func (r *Repo) Create(ctx context.Context, e domain.Event) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	if overCapacity(e) {
		return eventrepo.ErrCapacityExceeded
	}
	_, err := r.coll.InsertOne(ctx, toDoc(e))
	if mongodb.IsDuplicateID(err) {
		return eventrepo.ErrAlreadyExists
	}
	return err
}

// Save updates every field except participantIds. When a limit is set the filter
// also requires the stored participant count to fit under it.
func (r *Repo) Save(ctx context.Context, e domain.Event) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	d := toDoc(e)
	set := bson.M{
		"title":       d.Title,
		"description": d.Description,
		"location":    d.Location,
		"dateTime":    d.DateTime,
		"updatedAt":   d.UpdatedAt,
	}
	unset := bson.M{}
	if d.Address != nil {
		set["address"] = *d.Address
	} else {
		unset["address"] = ""
	}
	filter := bson.M{"_id": d.ID}
	if d.MaxParticipants != nil {
		set["maxParticipants"] = *d.MaxParticipants
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$size": "$participantIds"}, *d.MaxParticipants}}
	} else {
		unset["maxParticipants"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": d.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return eventrepo.ErrNotFound
	}
	return eventrepo.ErrCapacityExceeded
}

func (r *Repo) AddParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	if r.coll == nil {
		return domain.Event{}, errors.New("nil mongo collection")
	}
	filter := bson.M{
		"_id":            string(id),
		"participantIds": bson.M{"$ne": string(profile)},
		"$or": bson.A{
			bson.M{"maxParticipants": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{bson.M{"$size": "$participantIds"}, "$maxParticipants"}}},
		},
	}
	update := bson.M{
		"$push": bson.M{"participantIds": string(profile)},
		"$set":  bson.M{"updatedAt": at.UTC()},
	}
	e, err := r.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, eventrepo.ErrNotFound) {
		return e, err
	}

	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if cur.HasParticipant(profile) {
		return cur, nil
	}
	return domain.Event{}, eventrepo.ErrCapacityExceeded
}

func (r *Repo) RemoveParticipant(ctx context.Context, id domain.EventID, profile domain.ProfileID, at time.Time) (domain.Event, error) {
	if r.coll == nil {
		return domain.Event{}, errors.New("nil mongo collection")
	}
	filter := bson.M{"_id": string(id), "participantIds": string(profile)}
	update := bson.M{
		"$pull": bson.M{"participantIds": string(profile)},
		"$set":  bson.M{"updatedAt": at.UTC()},
	}
	e, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, eventrepo.ErrNotFound) {
		return r.GetByID(ctx, id)
	}
	return e, err
}

func (r *Repo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (domain.Event, error) {
	var d eventDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Event{}, eventrepo.ErrNotFound
		}
		return domain.Event{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) Delete(ctx context.Context, id domain.EventID) error {
	if r.coll == nil {
		return errors.New("nil mongo collection")
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return eventrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.EventID) (domain.Event, error) {
	if r.coll == nil {
		return domain.Event{}, errors.New("nil mongo collection")
	}
	var d eventDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Event{}, eventrepo.ErrNotFound
		}
		return domain.Event{}, err
	}
	return d.toDomain(), nil
}

func (r *Repo) ListUpcoming(ctx context.Context, after time.Time) ([]domain.Event, error) {
	return r.list(ctx, bson.M{"dateTime": bson.M{"$gt": after.UTC()}}, byDate())
}

// FindNear relies on $nearSphere, which returns documents nearest first.
func (r *Repo) FindNear(ctx context.Context, lon, lat float64, maxMeters float64, after time.Time) ([]domain.Event, error) {
	filter := bson.M{
		"location": bson.M{"$nearSphere": bson.M{
			"$geometry":    mongodb.NewGeoPoint(lon, lat),
			"$maxDistance": maxMeters,
		}},
		"dateTime": bson.M{"$gt": after.UTC()},
	}
	return r.list(ctx, filter, options.Find())
}

func (r *Repo) ListByOrganizer(ctx context.Context, organizer domain.ProfileID) ([]domain.Event, error) {
	return r.list(ctx, bson.M{"organizerId": string(organizer)}, byDate())
}

func (r *Repo) ListByParticipant(ctx context.Context, participant domain.ProfileID) ([]domain.Event, error) {
	return r.list(ctx, bson.M{"participantIds": string(participant)}, byDate())
}

func byDate() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "dateTime", Value: 1}, {Key: "_id", Value: 1}})
}

func (r *Repo) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Event, error) {
	if r.coll == nil {
		return nil, errors.New("nil mongo collection")
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
