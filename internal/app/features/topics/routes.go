// internal/app/features/topics/routes.go
package topics

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireActor)

		pr.Post("/", h.HandleCreate)
		pr.Get("/mine", h.ServeMine)
		pr.Post("/{id}/subscribe", h.HandleSubscribe)
		pr.Post("/{id}/unsubscribe", h.HandleUnsubscribe)
		pr.Post("/{id}/notifications", h.HandleNotifications)
	})

	return r
}
