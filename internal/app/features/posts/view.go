// internal/app/features/posts/view.go
package posts

import (
	"fmt"
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/distribution/postfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeGet handles GET /posts/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	postID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "post get")
	defer cancel()

	p, err := h.Feed.Get(ctx, actorID, postID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, p)
}

// ServeThread handles GET /posts/{id}/thread. Any post in the thread may
// be named; the whole thread from its root is returned.
func (h *Handler) ServeThread(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	postID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "post thread")
	defer cancel()

	th, err := h.Feed.Thread(ctx, actorID, postID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, th)
}

type updatePostInput struct {
	Title      *string   `json:"title" validate:"omitempty,max=300"`
	Body       *string   `json:"body" validate:"omitempty,max=20000"`
	Tags       *[]string `json:"tags" validate:"omitempty,max=20"`
	TargetType *string   `json:"target_type"`
	TargetID   *string   `json:"target_id"`
}

// change converts the body into a feed edit. Naming any part of a target
// is passed through so the feed can refuse a move; a target_id that is not
// an ObjectID is ErrInvalidTarget.
func (in updatePostInput) change() (postfeed.PostChange, error) {
	ch := postfeed.PostChange{Title: in.Title, Body: in.Body, Tags: in.Tags}
	if in.TargetType != nil || in.TargetID != nil {
		t := models.Target{}
		if in.TargetType != nil {
			t.Type = models.TargetType(*in.TargetType)
		}
		if in.TargetID != nil {
			id, err := primitive.ObjectIDFromHex(*in.TargetID)
			if err != nil {
				return postfeed.PostChange{}, fmt.Errorf("%w: bad target_id", errs.ErrInvalidTarget)
			}
			t.ID = id
		}
		ch.Target = &t
	}
	return ch, nil
}

// HandleUpdate handles PATCH /posts/{id}. Only the author may edit, and
// the audience is fixed at creation.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	postID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	var in updatePostInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	ch, err := in.change()
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "post update")
	defer cancel()

	p, bodyChanged, err := h.Feed.Update(ctx, actorID, postID, ch)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.PostUpdated(ctx, r, actorID, p.ID, bodyChanged)
	apierr.JSON(w, http.StatusOK, p)
}
