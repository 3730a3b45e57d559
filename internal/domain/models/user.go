// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered actor. Users are created at registration and are
// never deleted by the audience engine.
//
// NOTE:
//   - Group and topic relationships are not embedded on User.
//     Use group_memberships and topic_subscriptions to discover them.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email,omitempty"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"` // active | disabled

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UserRef is the author/creator block denormalized onto listed content.
type UserRef struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"full_name" json:"full_name"`
}
