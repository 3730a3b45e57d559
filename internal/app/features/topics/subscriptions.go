// internal/app/features/topics/subscriptions.go
package topics

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

type subscriptionResult struct {
	Subscription    *models.Subscription `json:"subscription,omitempty"`
	SubscriberCount int64                `json:"subscriber_count"`
}

// HandleSubscribe handles POST /topics/{id}/subscribe. Subscribing twice is
// not an error.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	topicID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "topic subscribe")
	defer cancel()

	sub, count, err := h.Subscriptions.Subscribe(ctx, topicID, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.TopicSubscribed(ctx, r, actorID, topicID, count)
	apierr.JSON(w, http.StatusOK, subscriptionResult{Subscription: &sub, SubscriberCount: count})
}

// HandleUnsubscribe handles POST /topics/{id}/unsubscribe.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	topicID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "topic unsubscribe")
	defer cancel()

	count, err := h.Subscriptions.Unsubscribe(ctx, topicID, actorID)
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	h.Audit.TopicUnsubscribed(ctx, r, actorID, topicID, count)
	apierr.JSON(w, http.StatusOK, subscriptionResult{SubscriberCount: count})
}

type notificationsInput struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// HandleNotifications handles POST /topics/{id}/notifications.
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.ActorID(r)
	if !ok {
		apierr.Unauthorized(w)
		return
	}
	topicID, err := reqdecode.PathID(r, "id")
	if err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	var in notificationsInput
	if err := reqdecode.JSON(r, &in); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "topic notifications")
	defer cancel()

	if err := h.Subscriptions.SetNotifications(ctx, topicID, actorID, *in.Enabled); err != nil {
		apierr.Write(w, r, h.Log, err)
		return
	}
	apierr.JSON(w, http.StatusOK, map[string]bool{"notifications_enabled": *in.Enabled})
}
