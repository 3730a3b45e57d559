package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription joins a user to a topic. Same uniqueness and reactivation
// rules as GroupMembership, without roles.
type Subscription struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TopicID              primitive.ObjectID `bson:"topic_id" json:"topic_id"`
	UserID               primitive.ObjectID `bson:"user_id" json:"user_id"`
	Active               bool               `bson:"active" json:"active"`
	NotificationsEnabled bool               `bson:"notifications_enabled" json:"notifications_enabled"`
	SubscribedAt         time.Time          `bson:"subscribed_at" json:"subscribed_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}
