// internal/app/features/events/invitations.go
package events

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type invitationList struct {
	Items []models.Invitation `json:"items"`
}

// ServeInvitations handles GET /events/{id}/invitations.
func (h *Handler) ServeInvitations(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event invitations")
	defer cancel()

	invs, err := h.Feed.Invitations(ctx, actorID, eventID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, invitationList{Items: invs})
}

// HandleInvite handles POST /events/{id}/invitations with {kind, id}.
// Inviting an already-invited audience is 409 already_invited.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
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
	var in inviteeInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	invitee, err := in.target()
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event invite")
	defer cancel()

	inv, err := h.Feed.Invite(ctx, actorID, eventID, invitee)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.InvitationCreated(ctx, r, actorID, eventID, string(invitee.Type), invitee.ID.Hex())
	apierr.JSON(w, http.StatusCreated, inv)
}

// HandleRevoke handles DELETE /events/{id}/invitations/{kind}/{inviteeID}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
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
	invitee, err := reqdecode.Target(chi.URLParam(r, "kind"), chi.URLParam(r, "inviteeID"))
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "event revoke")
	defer cancel()

	if err := h.Feed.Revoke(ctx, actorID, eventID, invitee); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.InvitationRevoked(ctx, r, actorID, eventID, string(invitee.Type), invitee.ID.Hex())
	w.WriteHeader(http.StatusNoContent)
}
