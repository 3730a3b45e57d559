// internal/app/features/audience/routes.go
package audience

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted under /me.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.With(sm.RequireActor).Get("/audience", h.Serve)
	return r
}
