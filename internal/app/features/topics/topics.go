// internal/app/features/topics/topics.go
package topics

import (
	"net/http"
	"strings"

	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type createTopicInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// HandleCreate handles POST /topics.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	var in createTopicInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	name := normalize.Name(in.Name)
	if name == "" {
		apierr.Write(w, r, h.Log, errs.Invalid("name is required"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "topic create")
	defer cancel()

	tp, err := h.Topics.Create(ctx, models.Topic{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   actorID,
	})
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.TopicCreated(ctx, r, actorID, tp.ID, tp.Name)
	apierr.JSON(w, http.StatusCreated, tp)
}

type topicList struct {
	Items []models.Topic `json:"items"`
}

// ServeMine handles GET /topics/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "topics mine")
	defer cancel()

	ids, err := h.Subscriptions.ActiveTopicIDs(ctx, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	topics, err := h.Topics.ListByIDs(ctx, ids)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, topicList{Items: topics})
}
