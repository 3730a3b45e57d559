// internal/app/features/events/list.go
package events

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/distribution/eventfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
)

type listQuery struct {
	Q        string `schema:"q" validate:"max=200"`
	Category string `schema:"category"`
	From     string `schema:"from"`
	To       string `schema:"to"`
}

func (q listQuery) filter(start int) (eventfeed.Filter, error) {
	from, err := reqdecode.Time(q.From, "from")
	if err != nil {
		return eventfeed.Filter{}, err
	}
	to, err := reqdecode.Time(q.To, "to")
	if err != nil {
		return eventfeed.Filter{}, err
	}
	return eventfeed.Filter{
		Search:   q.Q,
		Category: q.Category,
		From:     from,
		To:       to,
		Start:    start,
	}, nil
}

// ServeList handles GET /events.
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "events list")
	defer cancel()

	page, err := h.Feed.List(ctx, actorID, flt)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, page)
}

// ServeGet handles GET /events/{id}. Private events the actor is not
// invited to are 403.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	eventID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event get")
	defer cancel()

	e, err := h.Feed.Get(ctx, actorID, eventID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, e)
}
