// internal/app/distribution/postfeed/postfeed.go
package postfeed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/distribution/threads"
	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	"github.com/dalemusser/alumnihub/internal/app/store/queries/targetlookup"
	"github.com/dalemusser/alumnihub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/tracing"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/flowchartsman/retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = tracing.Tracer("postfeed")

// Feed lists, creates and edits posts on behalf of an actor. Every read
// is filtered through the actor's live audience.
type Feed struct {
	db       *mongo.Database
	posts    *poststore.Store
	audience *audiencepolicy.Resolver
	threads  *threads.Engine
}

func New(db *mongo.Database, posts *poststore.Store, audience *audiencepolicy.Resolver, th *threads.Engine) *Feed {
	return &Feed{db: db, posts: posts, audience: audience, threads: th}
}

// Filter narrows a listing. Zero values mean "no restriction".
type Filter struct {
	Search       string
	TopLevelOnly bool
	Target       *models.Target
	Tag          string
	AuthorID     primitive.ObjectID
	Start        int
}

// List returns one page of posts the actor may read, ranked by text
// relevance when Search is set and newest-updated first otherwise.
func (f *Feed) List(ctx context.Context, actorID primitive.ObjectID, flt Filter) (paging.Page[models.PostView], error) {
	ctx, span := tracer.Start(ctx, "postfeed.List")
	defer span.End()

	aud, err := f.audience.Reachable(ctx, actorID)
	if err != nil {
		return paging.Page[models.PostView]{}, err
	}

	and := bson.A{audiencepolicy.PostFilter(actorID, aud)}
	if flt.TopLevelOnly {
		and = append(and, bson.M{"is_reply": false})
	}
	if flt.Target != nil {
		if !flt.Target.Type.Valid() {
			return paging.Page[models.PostView]{}, errs.ErrInvalidTarget
		}
		and = append(and, bson.M{"target_type": flt.Target.Type, "target_id": flt.Target.ID})
	}
	if tag := strings.ToLower(strings.TrimSpace(flt.Tag)); tag != "" {
		and = append(and, bson.M{"tags": tag})
	}
	if !flt.AuthorID.IsZero() {
		and = append(and, bson.M{"author_id": flt.AuthorID})
	}

	filter := bson.M{"$and": and}
	search := normalize.QueryParam(flt.Search)
	if search != "" {
		filter["$text"] = bson.M{"$search": search}
	}

	start := flt.Start
	if start < 1 {
		start = 1
	}
	rows, err := f.posts.List(ctx, poststore.Query{
		Filter:     filter,
		TextSearch: search != "",
		Skip:       paging.Skip(start),
		Limit:      paging.LimitPlusOne(),
	})
	if err != nil {
		span.RecordError(err)
		return paging.Page[models.PostView]{}, err
	}
	span.SetAttributes(attribute.Int("postfeed.rows", len(rows)))
	return paging.TrimPage(rows, start), nil
}

// NewPost is a create request. ParentID makes it a reply, in which case
// Target may be left zero and is taken from the thread.
type NewPost struct {
	Target   models.Target
	Title    string
	Body     string
	Tags     []string
	ParentID *primitive.ObjectID
}

// Create stores a post after checking the actor may write to its target.
func (f *Feed) Create(ctx context.Context, actorID primitive.ObjectID, in NewPost) (models.Post, error) {
	ctx, span := tracer.Start(ctx, "postfeed.Create")
	defer span.End()

	draft := models.Post{
		Target: in.Target,
		Title:  strings.TrimSpace(in.Title),
		Body:   htmlsanitize.Clean(in.Body),
		Tags:   normalize.Tags(in.Tags),
	}
	if draft.Body == "" {
		return models.Post{}, errs.Invalid("body is required")
	}

	if in.ParentID != nil {
		if draft.Type != "" && !draft.Type.Valid() {
			return models.Post{}, errs.ErrInvalidTarget
		}
		return f.threads.Reply(ctx, actorID, *in.ParentID, draft)
	}

	if err := f.audience.RequireWrite(ctx, actorID, draft.Target); err != nil {
		return models.Post{}, err
	}
	if err := targetlookup.Require(ctx, f.db, draft.Target); err != nil {
		return models.Post{}, err
	}
	draft.AuthorID = actorID
	return f.posts.Insert(ctx, draft)
}

// PostChange is an edit request. Nil fields are left alone. Target is
// accepted only so that attempts to move a post can be refused.
type PostChange struct {
	Title  *string
	Body   *string
	Tags   *[]string
	Target *models.Target
}

// Update applies an author's edit. A body change records the previous
// body in the post's edit history. The second result reports whether the
// body changed.
//
// The history entry is written only if the body is still the one it was
// taken from; a concurrent edit makes Update reload and try again, and
// poststore.ErrStaleBody is returned once the retries run out.
func (f *Feed) Update(ctx context.Context, actorID, postID primitive.ObjectID, ch PostChange) (models.Post, bool, error) {
	var updated models.Post
	var bodyChanged bool
	retrier := retry.NewRetrier(editTries, 2*time.Millisecond, 50*time.Millisecond)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		var err error
		updated, bodyChanged, err = f.updateOnce(ctx, actorID, postID, ch)
		if err == nil || errors.Is(err, poststore.ErrStaleBody) {
			return err
		}
		return retry.Stop(err)
	})
	if err != nil {
		return models.Post{}, false, err
	}
	return updated, bodyChanged, nil
}

const editTries = 5

func (f *Feed) updateOnce(ctx context.Context, actorID, postID primitive.ObjectID, ch PostChange) (models.Post, bool, error) {
	p, err := f.posts.GetByID(ctx, postID)
	if err != nil {
		return models.Post{}, false, err
	}
	if p.AuthorID != actorID {
		return models.Post{}, false, errs.Forbidden("only the author can edit a post")
	}
	if ch.Target != nil && !ch.Target.Equal(p.Target) {
		return models.Post{}, false, errs.Forbidden("cannot change post audience after creation")
	}

	var edit poststore.Edit
	if ch.Title != nil {
		title := strings.TrimSpace(*ch.Title)
		edit.Title = &title
	}
	if ch.Tags != nil {
		tags := normalize.Tags(*ch.Tags)
		if tags == nil {
			tags = []string{}
		}
		edit.Tags = &tags
	}
	bodyChanged := false
	if ch.Body != nil {
		body := htmlsanitize.Clean(*ch.Body)
		if body == "" {
			return models.Post{}, false, errs.Invalid("body is required")
		}
		if body != p.Body {
			bodyChanged = true
			edit.Body = &body
			edit.History = &models.PostEdit{Body: p.Body, EditedAt: time.Now().UTC()}
		}
	}

	updated, err := f.posts.ApplyEdit(ctx, postID, edit)
	if err != nil {
		return models.Post{}, false, err
	}
	return updated, bodyChanged, nil
}

// Get returns one post with its author. A post outside the actor's
// audience fails with ErrForbidden rather than reading as missing.
func (f *Feed) Get(ctx context.Context, actorID, postID primitive.ObjectID) (models.PostView, error) {
	p, err := f.posts.GetByID(ctx, postID)
	if err != nil {
		return models.PostView{}, err
	}
	ok, err := f.threads.CanRead(ctx, actorID, p)
	if err != nil {
		return models.PostView{}, err
	}
	if !ok {
		return models.PostView{}, errs.Forbidden("you cannot view this post")
	}
	return f.posts.View(ctx, postID)
}

// Thread returns the thread containing postID.
func (f *Feed) Thread(ctx context.Context, actorID, postID primitive.ObjectID) (threads.Thread, error) {
	return f.threads.Get(ctx, actorID, postID)
}
