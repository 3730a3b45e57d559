// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActorCtx returns the actor's display name, ObjectID and a found flag.
// If no actor is present in context or the id is zero, it returns
// "", NilObjectID, false. This ensures callers can trust that ok=true
// means a verified actor with a usable id.
func ActorCtx(r *http.Request) (name string, actorID primitive.ObjectID, ok bool) {
	a, ok := auth.CurrentActor(r)
	if !ok || a.ID.IsZero() {
		return "", primitive.NilObjectID, false
	}
	return a.Name, a.ID, true
}

// ActorID is ActorCtx without the name.
func ActorID(r *http.Request) (primitive.ObjectID, bool) {
	_, id, ok := ActorCtx(r)
	return id, ok
}

// IsActor reports whether the request's actor is id.
func IsActor(r *http.Request, id primitive.ObjectID) bool {
	cur, ok := ActorID(r)
	return ok && cur == id
}
