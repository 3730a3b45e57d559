// internal/app/store/posts/poststore.go
package poststore

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

// Store persists posts. It has no method that writes target_type or
// target_id after Insert.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("posts")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var p models.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, errs.NotFound("post")
		}
		return models.Post{}, err
	}
	return p, nil
}

// Insert stores a new post with a fresh id and timestamps.
func (s *Store) Insert(ctx context.Context, p models.Post) (models.Post, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.ReplyCount = 0
	p.EditHistory = nil
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// IncrementReplyCount adds one to a post's reply_count in a single atomic
// update.
func (s *Store) IncrementReplyCount(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"reply_count": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("parent post")
	}
	return nil
}

// ErrStaleBody means the post's body no longer matches the body an edit's
// history entry was taken from.
var ErrStaleBody = errors.New("post body changed since it was read")

// Edit is a content change. Nil fields are left alone.
type Edit struct {
	Title *string
	Body  *string
	Tags  *[]string
	// History is appended to edit_history when set. Its Body must still be
	// the stored body or the edit fails with ErrStaleBody.
	History *models.PostEdit
}

// ApplyEdit writes an edit and returns the updated post.
func (s *Store) ApplyEdit(ctx context.Context, id primitive.ObjectID, e Edit) (models.Post, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if e.Title != nil {
		set["title"] = *e.Title
	}
	if e.Body != nil {
		set["body"] = *e.Body
	}
	if e.Tags != nil {
		set["tags"] = *e.Tags
	}
	upd := bson.M{"$set": set}
	filter := bson.M{"_id": id}
	if e.History != nil {
		upd["$push"] = bson.M{"edit_history": *e.History}
		filter["body"] = e.History.Body
	}

	var p models.Post
	err := s.c.FindOneAndUpdate(ctx, filter, upd,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, err
		}
		if e.History != nil {
			n, cerr := s.c.CountDocuments(ctx, bson.M{"_id": id})
			if cerr != nil {
				return models.Post{}, cerr
			}
			if n > 0 {
				return models.Post{}, ErrStaleBody
			}
		}
		return models.Post{}, errs.NotFound("post")
	}
	return p, nil
}

// ListThread returns every reply whose thread_root is rootID, oldest first.
func (s *Store) ListThread(ctx context.Context, rootID primitive.ObjectID) ([]models.PostView, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"thread_root": rootID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	return s.aggregateViews(ctx, append(pipe, authorLookup()...))
}

// View loads one post with its author.
func (s *Store) View(ctx context.Context, id primitive.ObjectID) (models.PostView, error) {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}
	out, err := s.aggregateViews(ctx, append(pipe, authorLookup()...))
	if err != nil {
		return models.PostView{}, err
	}
	if len(out) == 0 {
		return models.PostView{}, errs.NotFound("post")
	}
	return out[0], nil
}

// Query is a listing request. Filter is the complete predicate; when it
// contains $text set TextSearch so results are ordered by relevance.
type Query struct {
	Filter     bson.M
	TextSearch bool
	Skip       int64
	Limit      int64
}

// List returns one page of posts with authors denormalized.
func (s *Store) List(ctx context.Context, q Query) ([]models.PostView, error) {
	sort := bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}
	if q.TextSearch {
		sort = bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}, {Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}
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
	return s.aggregateViews(ctx, append(pipe, authorLookup()...))
}

func authorLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": "users",
			"let":  bson.M{"aid": "$author_id"},
			"pipeline": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$aid"}}}}},
				{{Key: "$project", Value: bson.M{"_id": 1, "full_name": 1}}},
			},
			"as": "author",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$author", "preserveNullAndEmptyArrays": true}}},
	}
}

func (s *Store) aggregateViews(ctx context.Context, pipe mongo.Pipeline) ([]models.PostView, error) {
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.PostView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
