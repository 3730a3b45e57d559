// internal/app/store/topics/topicstore.go
package topicstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateTopicName = fmt.Errorf("%w: a topic with this name already exists", errs.ErrInvalidInput)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("topics")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Topic, error) {
	var tp models.Topic
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&tp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Topic{}, errs.NotFound("topic")
		}
		return models.Topic{}, err
	}
	return tp, nil
}

func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts a topic. Creating a topic does not subscribe its creator.
func (s *Store) Create(ctx context.Context, tp models.Topic) (models.Topic, error) {
	now := time.Now().UTC()
	tp.ID = primitive.NewObjectID()
	tp.Name = strings.TrimSpace(tp.Name)
	tp.NameCI = text.Fold(tp.Name)
	tp.SubscriberCount = 0
	tp.CreatedAt = now
	tp.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, tp); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Topic{}, ErrDuplicateTopicName
		}
		return models.Topic{}, err
	}
	return tp, nil
}

// SetSubscriberCount persists a freshly counted subscriber total.
func (s *Store) SetSubscriberCount(ctx context.Context, id primitive.ObjectID, n int64) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"subscriber_count": n}})
	return err
}

func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Topic, error) {
	out := []models.Topic{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IDs returns the id of every topic, in _id order.
func (s *Store) IDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.ID)
	}
	return out, cur.Err()
}
