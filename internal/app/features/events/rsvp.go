// internal/app/features/events/rsvp.go
package events

import (
	"net/http"

	rsvpstore "github.com/dalemusser/alumnihub/internal/app/store/rsvps"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
)

type rsvpInput struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// HandleRSVP handles POST /events/{id}/rsvp. A full event answers 409
// capacity_exceeded for "going"; maybe and not_going are always accepted.
func (h *Handler) HandleRSVP(w http.ResponseWriter, r *http.Request) {
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
	var in rsvpInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	// RSVPs may wait on the event lease.
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "rsvp")
	defer cancel()

	res, err := h.Feed.RSVP(ctx, actorID, eventID, in.Status, in.Note)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.RSVPRecorded(ctx, r, actorID, eventID, res.RSVP.Status, res.AttendeeCount)
	apierr.JSON(w, http.StatusOK, res)
}

type attendeeList struct {
	Items []rsvpstore.Attendee `json:"items"`
}

// ServeAttendees handles GET /events/{id}/attendees.
func (h *Handler) ServeAttendees(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event attendees")
	defer cancel()

	out, err := h.Feed.Attendees(ctx, actorID, eventID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, attendeeList{Items: out})
}
