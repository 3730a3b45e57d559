// internal/app/features/groups/membership.go
package groups

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/alumnihub/internal/app/store/queries/groupmembers"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type membershipResult struct {
	Membership  *models.GroupMembership `json:"membership,omitempty"`
	MemberCount int64                   `json:"member_count"`
}

// HandleJoin handles POST /groups/{id}/join. Joining twice is not an error.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	groupID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "group join")
	defer cancel()

	m, count, err := h.Memberships.Join(ctx, groupID, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.MemberJoined(ctx, r, actorID, groupID, count)
	apierr.JSON(w, http.StatusOK, membershipResult{Membership: &m, MemberCount: count})
}

// HandleLeave handles POST /groups/{id}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	groupID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "group leave")
	defer cancel()

	count, err := h.Memberships.Leave(ctx, groupID, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.MemberLeft(ctx, r, actorID, groupID, count)
	apierr.JSON(w, http.StatusOK, membershipResult{MemberCount: count})
}

type setRoleInput struct {
	Role string `json:"role" validate:"required"`
}

// HandleSetRole handles POST /groups/{id}/members/{uid}/role. Only an
// active admin of the group may change roles.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	groupID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	userID, err := reqdecode.PathID(r, "uid")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	var in setRoleInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "group set role")
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	if err := grouppolicy.RequireAdmin(ctx, h.DB, groupID, actorID); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	m, err := h.Memberships.SetRole(ctx, groupID, userID, normalize.Role(in.Role))
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.MemberRoleChanged(ctx, r, actorID, userID, groupID, m.Role)
	apierr.JSON(w, http.StatusOK, m)
}

type memberList struct {
	Items []groupmembers.GroupMember `json:"items"`
}

// ServeMembers handles GET /groups/{id}/members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.ActorID(r); !ok {
		apierr.Unauthorized(w)
		return
	}
	groupID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "group members")
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	members, err := groupmembers.ListActive(ctx, h.DB, groupID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, memberList{Items: members})
}
