// internal/app/features/events/routes.go
package events

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the handlers. Creation is throttled per actor by writes,
// which may be nil.
func Routes(h *Handler, sm *auth.SessionManager, writes *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireActor)

		pr.Get("/", h.ServeList)
		pr.With(writes.Middleware).Post("/", h.HandleCreate)
		pr.Get("/{id}", h.ServeGet)

		// RSVP
		pr.Post("/{id}/rsvp", h.HandleRSVP)
		pr.Get("/{id}/attendees", h.ServeAttendees)

		// INVITATIONS (creator only)
		pr.Get("/{id}/invitations", h.ServeInvitations)
		pr.Post("/{id}/invitations", h.HandleInvite)
		pr.Delete("/{id}/invitations/{kind}/{inviteeID}", h.HandleRevoke)
	})

	return r
}
