// internal/app/store/events/eventstore.go
package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	var e models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Event{}, errs.NotFound("event")
		}
		return models.Event{}, err
	}
	return e, nil
}

// Create inserts an event. attendee_count starts at zero.
func (s *Store) Create(ctx context.Context, e models.Event) (models.Event, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	e.AttendeeCount = 0
	e.CreatedAt = now
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// SetAttendeeCount persists a freshly counted going total. It is the only
// writer of attendee_count.
func (s *Store) SetAttendeeCount(ctx context.Context, id primitive.ObjectID, n int64) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"attendee_count": n}})
	return err
}

// View loads one event with its creator.
func (s *Store) View(ctx context.Context, id primitive.ObjectID) (models.EventView, error) {
	out, err := s.aggregateViews(ctx, append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}, creatorLookup()...))
	if err != nil {
		return models.EventView{}, err
	}
	if len(out) == 0 {
		return models.EventView{}, errs.NotFound("event")
	}
	return out[0], nil
}

// Query is a listing request; see poststore.Query.
type Query struct {
	Filter     bson.M
	TextSearch bool
	Skip       int64
	Limit      int64
}

// List returns one page of events, soonest first unless ranked by text
// relevance.
func (s *Store) List(ctx context.Context, q Query) ([]models.EventView, error) {
	sort := bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}
	if q.TextSearch {
		sort = bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}, {Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}
	}
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: q.Filter}},
		{{Key: "$sort", Value: sort}},
	}
	if q.Skip > 0 {
		pipe = append(pipe, bson.D{{Key: "$skip", Value: q.Skip}})
	}
	if q.Limit > 0 {
		pipe = append(pipe, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	return s.aggregateViews(ctx, append(pipe, creatorLookup()...))
}

func creatorLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": "users",
			"let":  bson.M{"cid": "$creator_id"},
			"pipeline": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$cid"}}}}},
				{{Key: "$project", Value: bson.M{"_id": 1, "full_name": 1}}},
			},
			"as": "creator",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$creator", "preserveNullAndEmptyArrays": true}}},
	}
}

func (s *Store) aggregateViews(ctx context.Context, pipe mongo.Pipeline) ([]models.EventView, error) {
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.EventView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
