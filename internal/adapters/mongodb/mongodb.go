// Package mongodb holds the shared MongoDB plumbing used by the document-store repositories.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ProfilesCollection = "profiles"
	MatchesCollection  = "matches"
	MessagesCollection = "messages"
	EventsCollection   = "events"
	AccountsCollection = "accounts"
)

// Index names referenced when translating duplicate key errors.
const (
	ProfileUserIndex  = "profiles_user_id_unique"
	MatchPairKeyIndex = "matches_pair_key_unique"
	AccountEmailIndex = "accounts_email_unique"
)

// Connect opens a client for uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("empty mongo uri")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes every repository relies on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		ProfilesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName(ProfileUserIndex)},
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("profiles_location_2dsphere")},
		},
		MatchesCollection: {
			{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true).SetName(MatchPairKeyIndex)},
			{Keys: bson.D{{Key: "initiatorId", Value: 1}}, Options: options.Index().SetName("matches_initiator")},
			{Keys: bson.D{{Key: "targetId", Value: 1}}, Options: options.Index().SetName("matches_target")},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "sentAt", Value: 1}}, Options: options.Index().SetName("messages_pair_sent")},
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "read", Value: 1}}, Options: options.Index().SetName("messages_unread")},
		},
		EventsCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("events_location_2dsphere")},
			{Keys: bson.D{{Key: "dateTime", Value: 1}}, Options: options.Index().SetName("events_date_time")},
			{Keys: bson.D{{Key: "organizerId", Value: 1}}, Options: options.Index().SetName("events_organizer")},
			{Keys: bson.D{{Key: "participantIds", Value: 1}}, Options: options.Index().SetName("events_participants")},
		},
		AccountsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(AccountEmailIndex)},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// IsDuplicateOn reports whether err is a duplicate key error raised by index.
// An empty index matches any duplicate key error.
func IsDuplicateOn(err error, index string) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	return index == "" || strings.Contains(err.Error(), index)
}

// IsDuplicateID reports whether err is a duplicate key error on _id.
func IsDuplicateID(err error) bool {
	return IsDuplicateOn(err, "_id_")
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}
