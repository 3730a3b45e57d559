// internal/domain/models/groupmembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group roles.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ValidGroupRole reports whether role is one of member, moderator or admin.
func ValidGroupRole(role string) bool {
	return role == RoleMember || role == RoleModerator || role == RoleAdmin
}

// GroupMembership is the authoritative join between users and groups.
// Exactly one document per (user_id, group_id); leaving flips Active to
// false and rejoining flips it back rather than inserting a second row.
type GroupMembership struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role      string             `bson:"role" json:"role"` // "member" | "moderator" | "admin"
	Active    bool               `bson:"active" json:"active"`
	JoinedAt  time.Time          `bson:"joined_at" json:"joined_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
