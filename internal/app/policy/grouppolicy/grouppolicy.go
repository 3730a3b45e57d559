// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import (
	"context"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// HasRole returns true if the given user holds one of roles in the given
// group according to the authoritative group_memberships collection.
// Inactive rows never count.
func HasRole(ctx context.Context, db *mongo.Database, groupID, userID primitive.ObjectID, roles ...string) (bool, error) {
	c := db.Collection("group_memberships")
	n, err := c.CountDocuments(ctx, bson.M{
		"group_id": groupID,
		"user_id":  userID,
		"active":   true,
		"role":     bson.M{"$in": roles},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsAdmin returns true if the user is an active admin of the group.
func IsAdmin(ctx context.Context, db *mongo.Database, groupID, userID primitive.ObjectID) (bool, error) {
	return HasRole(ctx, db, groupID, userID, models.RoleAdmin)
}

// CanModerate reports whether the user is an active admin or moderator.
func CanModerate(ctx context.Context, db *mongo.Database, groupID, userID primitive.ObjectID) (bool, error) {
	return HasRole(ctx, db, groupID, userID, models.RoleAdmin, models.RoleModerator)
}

// RequireAdmin fails with ErrForbidden unless the actor is an active admin.
// Returns the database error as-is so callers can distinguish "not
// authorized" from a failed check.
func RequireAdmin(ctx context.Context, db *mongo.Database, groupID, actorID primitive.ObjectID) error {
	ok, err := IsAdmin(ctx, db, groupID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Forbidden("only a group admin can do that")
	}
	return nil
}
