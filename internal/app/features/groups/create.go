// internal/app/features/groups/create.go
package groups

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/app/system/txn"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type createGroupInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// HandleCreate handles POST /groups. The group, the creator's admin
// membership and the first recount are written in one transaction.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}

	var in createGroupInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	name := normalize.Name(in.Name)
	if name == "" {
		apierr.Write(w, r, h.Log, errs.Invalid("name is required"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "group create")
	defer cancel()

	var g models.Group
	err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		g, err = h.Groups.Create(ctx, models.Group{
			Name:        name,
			Description: strings.TrimSpace(in.Description),
			CreatedBy:   actorID,
		})
		if err != nil {
			return err
		}
		if _, err := h.Memberships.AddAdmin(ctx, g.ID, actorID); err != nil {
			return err
		}
		g.MemberCount, err = h.Memberships.Recount(ctx, g.ID)
		return err
	})
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	h.Audit.GroupCreated(ctx, r, actorID, g.ID, g.Name)
	apierr.JSON(w, http.StatusCreated, g)
}
