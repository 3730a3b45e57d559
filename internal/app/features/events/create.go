// internal/app/features/events/create.go
package events

import (
	"net/http"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/distribution/eventfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type inviteeInput struct {
	Kind string `json:"kind" validate:"required"`
	ID   string `json:"id" validate:"required"`
}

func (in inviteeInput) target() (models.Target, error) {
	return reqdecode.Target(in.Kind, in.ID)
}

type createEventInput struct {
	Title        string         `json:"title" validate:"required,max=300"`
	Description  string         `json:"description" validate:"max=20000"`
	Category     string         `json:"category" validate:"max=100"`
	Location     string         `json:"location" validate:"max=300"`
	StartsAt     time.Time      `json:"starts_at"`
	EndsAt       *time.Time     `json:"ends_at"`
	IsPrivate    bool           `json:"is_private"`
	MaxAttendees int64          `json:"max_attendees" validate:"gte=0"`
	Invitees     []inviteeInput `json:"invitees" validate:"max=200,dive"`
}

type createEventResult struct {
	Event       models.Event        `json:"event"`
	Invitations []models.Invitation `json:"invitations"`
}

// HandleCreate handles POST /events. The event and its initial invitations
// are stored together.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	var in createEventInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ne := eventfeed.NewEvent{
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Location:     in.Location,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
		IsPrivate:    in.IsPrivate,
		MaxAttendees: in.MaxAttendees,
	}
	for _, inv := range in.Invitees {
		t, err := inv.target()
		if err != nil {
			apierr.Write(w, r, h.Log, err)
			return
		}
		ne.Invitees = append(ne.Invitees, t)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "event create")
	defer cancel()

	e, invs, err := h.Feed.Create(ctx, actorID, ne)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	h.Audit.EventCreated(ctx, r, actorID, e.ID, e.Title, e.IsPrivate)
	for _, inv := range invs {
		h.Audit.InvitationCreated(ctx, r, actorID, e.ID, string(inv.InviteeKind), inv.InviteeID.Hex())
	}
	apierr.JSON(w, http.StatusCreated, createEventResult{Event: e, Invitations: invs})
}
