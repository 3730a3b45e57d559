// internal/app/store/groups/groupstore.go
package groupstore

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

// ErrDuplicateGroupName is an invalid-input error so the HTTP layer reports it as 422.
var ErrDuplicateGroupName = fmt.Errorf("%w: a group with this name already exists", errs.ErrInvalidInput)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// GetByID loads a group. A missing group is errs.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, errs.NotFound("group")
		}
		return models.Group{}, err
	}
	return g, nil
}

// Exists reports whether a group with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts a new group. The member count starts at zero; callers add
// the creator's admin membership and recount in the same transaction.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Name = strings.TrimSpace(g.Name)
	g.NameCI = text.Fold(g.Name)
	if g.Status == "" {
		g.Status = models.StatusActive
	}
	g.MemberCount = 0
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, g)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupName
		}
		return models.Group{}, err
	}
	return g, nil
}

// UpdateInfo changes a group's name and description.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc string) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if strings.TrimSpace(name) != "" {
		set["name"] = strings.TrimSpace(name)
		set["name_ci"] = text.Fold(name)
	}
	// Description can be cleared (set to empty)
	set["description"] = desc
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateGroupName
		}
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("group")
	}
	return nil
}

// SetMemberCount persists a freshly counted member total. It is the only
// writer of member_count.
func (s *Store) SetMemberCount(ctx context.Context, id primitive.ObjectID, n int64) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"member_count": n}})
	return err
}

// ListByIDs returns the groups in ids ordered by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	out := []models.Group{}
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

// IDs returns the id of every group, in _id order.
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
