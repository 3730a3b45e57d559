// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires an actor
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireActor)

		pr.Post("/", h.HandleCreate)
		pr.Get("/mine", h.ServeMine)

		// MEMBERSHIP
		pr.Post("/{id}/join", h.HandleJoin)
		pr.Post("/{id}/leave", h.HandleLeave)
		pr.Get("/{id}/members", h.ServeMembers)
		pr.Post("/{id}/members/{uid}/role", h.HandleSetRole)
	})

	return r
}
