// internal/app/distribution/threads/threads.go
package threads

import (
	"context"
	"errors"

	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	"github.com/dalemusser/alumnihub/internal/app/system/tracing"
	"github.com/dalemusser/alumnihub/internal/app/system/txn"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = tracing.Tracer("threads")

// Engine creates replies and reads threads. Every reply points at its
// direct parent and at the thread's top-level root, and carries the root's
// target so the whole thread shares one audience.
type Engine struct {
	db       *mongo.Database
	posts    *poststore.Store
	audience *audiencepolicy.Resolver
	log      *zap.Logger
}

func New(db *mongo.Database, posts *poststore.Store, audience *audiencepolicy.Resolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{db: db, posts: posts, audience: audience, log: log}
}

// Thread is a root post and its replies, oldest first.
type Thread struct {
	Root    models.PostView   `json:"root"`
	Replies []models.PostView `json:"replies"`
}

// Root returns the top-level post of p's thread (p itself when p is not
// a reply).
func (e *Engine) Root(ctx context.Context, p models.Post) (models.Post, error) {
	if !p.IsReply || p.ThreadRoot == nil {
		return p, nil
	}
	root, err := e.posts.GetByID(ctx, *p.ThreadRoot)
	if errors.Is(err, errs.ErrNotFound) {
		return models.Post{}, errs.NotFound("thread root")
	}
	return root, err
}

// CanRead reports whether the actor may read p, judged by its thread root.
func (e *Engine) CanRead(ctx context.Context, actorID primitive.ObjectID, p models.Post) (bool, error) {
	root, err := e.Root(ctx, p)
	if err != nil {
		return false, err
	}
	return e.audience.CanReadPost(ctx, actorID, root)
}

// Reply stores draft as a reply to parentID and bumps the parent's
// reply_count by one in the same transaction. If draft names a target it
// must match the thread's target.
func (e *Engine) Reply(ctx context.Context, actorID, parentID primitive.ObjectID, draft models.Post) (models.Post, error) {
	ctx, span := tracer.Start(ctx, "threads.Reply")
	defer span.End()

	parent, err := e.posts.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.Post{}, errs.NotFound("parent post")
		}
		return models.Post{}, err
	}
	root, err := e.Root(ctx, parent)
	if err != nil {
		return models.Post{}, err
	}

	if draft.Type != "" && !draft.Target.Equal(root.Target) {
		return models.Post{}, errs.Forbidden("a reply must be addressed to its thread's audience")
	}
	ok, err := e.audience.CanReadPost(ctx, actorID, root)
	if err != nil {
		return models.Post{}, err
	}
	if !ok {
		return models.Post{}, errs.Forbidden("you cannot reply in this thread")
	}
	if err := e.audience.RequireWrite(ctx, actorID, root.Target); err != nil {
		return models.Post{}, err
	}

	rootID := root.ID
	draft.AuthorID = actorID
	draft.Target = root.Target
	draft.ParentPost = &parent.ID
	draft.ThreadRoot = &rootID
	draft.IsReply = true

	var created models.Post
	err = txn.Run(ctx, e.db, e.log, func(ctx context.Context) error {
		p, err := e.posts.Insert(ctx, draft)
		if err != nil {
			return err
		}
		if err := e.posts.IncrementReplyCount(ctx, parent.ID); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Post{}, err
	}
	span.SetAttributes(attribute.String("thread.root", rootID.Hex()))
	return created, nil
}

// Get returns the thread containing postID. Access is decided by the
// root's audience; replies never carry their own.
func (e *Engine) Get(ctx context.Context, actorID, postID primitive.ObjectID) (Thread, error) {
	ctx, span := tracer.Start(ctx, "threads.Get")
	defer span.End()

	p, err := e.posts.GetByID(ctx, postID)
	if err != nil {
		return Thread{}, err
	}
	root, err := e.Root(ctx, p)
	if err != nil {
		return Thread{}, err
	}
	ok, err := e.audience.CanReadPost(ctx, actorID, root)
	if err != nil {
		return Thread{}, err
	}
	if !ok {
		return Thread{}, errs.Forbidden("you cannot view this thread")
	}

	rootView, err := e.posts.View(ctx, root.ID)
	if err != nil {
		return Thread{}, err
	}
	replies, err := e.posts.ListThread(ctx, root.ID)
	if err != nil {
		return Thread{}, err
	}
	if replies == nil {
		replies = []models.PostView{}
	}
	span.SetAttributes(attribute.Int("thread.replies", len(replies)))
	return Thread{Root: rootView, Replies: replies}, nil
}
