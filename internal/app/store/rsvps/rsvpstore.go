// internal/app/store/rsvps/rsvpstore.go
package rsvpstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the RSVP ledger: one row per (event, user), overwritten on each
// response. Capacity checks are the caller's job and must run under the
// event's lease.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("event_rsvps")}
}

func (s *Store) Get(ctx context.Context, eventID, userID primitive.ObjectID) (models.RSVP, error) {
	var r models.RSVP
	if err := s.c.FindOne(ctx, bson.M{"event_id": eventID, "user_id": userID}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.RSVP{}, errs.NotFound("rsvp")
		}
		return models.RSVP{}, err
	}
	return r, nil
}

// CountGoing counts going rows for an event, leaving out exclude when it is
// not the zero id.
func (s *Store) CountGoing(ctx context.Context, eventID, exclude primitive.ObjectID) (int64, error) {
	filter := bson.M{"event_id": eventID, "status": models.RSVPGoing}
	if !exclude.IsZero() {
		filter["user_id"] = bson.M{"$ne": exclude}
	}
	return s.c.CountDocuments(ctx, filter)
}

// Upsert records a response, replacing any earlier one from the same user.
func (s *Store) Upsert(ctx context.Context, eventID, userID primitive.ObjectID, status, note string) (models.RSVP, error) {
	now := time.Now().UTC()
	var r models.RSVP
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"event_id": eventID, "user_id": userID},
		bson.M{
			"$set": bson.M{"status": status, "note": note, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&r)
	if err != nil {
		return models.RSVP{}, err
	}
	return r, nil
}

// Attendee is a going RSVP with the user's display name.
type Attendee struct {
	User   models.UserRef `bson:"user" json:"user"`
	Note   string         `bson:"note,omitempty" json:"note,omitempty"`
	Status string         `bson:"status" json:"status"`
}

// ListGoing returns the event's going RSVPs ordered by name.
func (s *Store) ListGoing(ctx context.Context, eventID primitive.ObjectID) ([]Attendee, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID, "status": models.RSVPGoing}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$sort", Value: bson.D{{Key: "user.full_name_ci", Value: 1}, {Key: "user._id", Value: 1}}}},
		{{Key: "$project", Value: bson.M{
			"user":   bson.M{"_id": "$user._id", "full_name": "$user.full_name"},
			"note":   1,
			"status": 1,
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []Attendee{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
