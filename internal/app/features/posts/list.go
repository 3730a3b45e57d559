// internal/app/features/posts/list.go
package posts

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/distribution/postfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
)

// listQuery holds the filters of GET /posts. start is read separately by
// paging.ParseStart.
type listQuery struct {
	Q          string `schema:"q" validate:"max=200"`
	TopLevel   bool   `schema:"top_level"`
	TargetType string `schema:"target_type"`
	TargetID   string `schema:"target_id"`
	Tag        string `schema:"tag"`
	Author     string `schema:"author"`
}

func (q listQuery) filter(start int) (postfeed.Filter, error) {
	flt := postfeed.Filter{
		Search:       q.Q,
		TopLevelOnly: q.TopLevel,
		Tag:          q.Tag,
		Start:        start,
	}
	if q.TargetType != "" || q.TargetID != "" {
		t, err := reqdecode.Target(q.TargetType, q.TargetID)
		if err != nil {
			return postfeed.Filter{}, err
		}
		flt.Target = &t
	}
	if q.Author != "" {
		id, err := reqdecode.ObjectID(q.Author, "author")
		if err != nil {
			return postfeed.Filter{}, err
		}
		flt.AuthorID = id
	}
	return flt, nil
}

// ServeList handles GET /posts: the actor's visible feed, one page at a
// time.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}

	var q listQuery
	if err := reqdecode.Query(r, &q); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	flt, err := q.filter(paging.ParseStart(r))
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "posts list")
	defer cancel()

	page, err := h.Feed.List(ctx, actorID, flt)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, page)
}
