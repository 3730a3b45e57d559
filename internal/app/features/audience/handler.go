// internal/app/features/audience/handler.go
package audience

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	groupstore "github.com/dalemusser/alumnihub/internal/app/store/groups"
	topicstore "github.com/dalemusser/alumnihub/internal/app/store/topics"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler reports the actor's current audience.
type Handler struct {
	Resolver *audiencepolicy.Resolver
	Groups   *groupstore.Store
	Topics   *topicstore.Store
	Log      *zap.Logger
}

func NewHandler(resolver *audiencepolicy.Resolver, groups *groupstore.Store, topics *topicstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Resolver: resolver,
		Groups:   groups,
		Topics:   topics,
		Log:      logger,
	}
}

type audienceResponse struct {
	audiencepolicy.Audience
	Groups []models.Group `json:"groups"`
	Topics []models.Topic `json:"topics"`
}

// Serve handles GET /me/audience: the groups and topics the actor reaches
// right now, as ids and as documents.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "audience")
	defer cancel()

	aud, err := h.Resolver.Reachable(ctx, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	groups, err := h.Groups.ListByIDs(ctx, aud.GroupIDs)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	topics, err := h.Topics.ListByIDs(ctx, aud.TopicIDs)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, audienceResponse{Audience: aud, Groups: groups, Topics: topics})
}
