// internal/app/features/posts/create.go
package posts

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/distribution/postfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
)

type createPostInput struct {
	TargetType string   `json:"target_type"`
	TargetID   string   `json:"target_id"`
	ParentID   string   `json:"parent_id"`
	Title      string   `json:"title" validate:"max=300"`
	Body       string   `json:"body" validate:"required,max=20000"`
	Tags       []string `json:"tags" validate:"max=20,dive,max=50"`
}

// toNewPost parses the target and parent. A reply may omit its target;
// it inherits the thread's.
func (in createPostInput) toNewPost() (postfeed.NewPost, error) {
	np := postfeed.NewPost{
		Title: in.Title,
		Body:  in.Body,
		Tags:  in.Tags,
	}
	if in.ParentID != "" {
		id, err := reqdecode.ObjectID(in.ParentID, "parent_id")
		if err != nil {
			return postfeed.NewPost{}, err
		}
		np.ParentID = &id
		if in.TargetType == "" && in.TargetID == "" {
			return np, nil
		}
	}
	t, err := reqdecode.Target(in.TargetType, in.TargetID)
	if err != nil {
		return postfeed.NewPost{}, err
	}
	np.Target = t
	return np, nil
}

// HandleCreate handles POST /posts, for both top-level posts and replies.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	var in createPostInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	np, err := in.toNewPost()
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "post create")
	defer cancel()

	p, err := h.Feed.Create(ctx, actorID, np)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.PostCreated(ctx, r, actorID, p.ID, string(p.Target.Type), p.Target.ID.Hex(), p.IsReply)
	apierr.JSON(w, http.StatusCreated, p)
}
