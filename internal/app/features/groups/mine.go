// internal/app/features/groups/mine.go
package groups

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type groupList struct {
	Items []models.Group `json:"items"`
}

// ServeMine handles GET /groups/mine: the groups the actor is an active
// member of, by name.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "groups mine")
	defer cancel()

	ids, err := h.Memberships.ActiveGroupIDs(ctx, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	groups, err := h.Groups.ListByIDs(ctx, ids)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, groupList{Items: groups})
}
