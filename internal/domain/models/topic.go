package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Topic is an interest channel that actors follow. SubscriberCount is a
// materialized count of active topic_subscriptions rows.
type Topic struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	Name            string             `bson:"name" json:"name"`
	NameCI          string             `bson:"name_ci" json:"-"`
	Description     string             `bson:"description" json:"description"`
	CreatedBy       primitive.ObjectID `bson:"created_by" json:"created_by"`
	SubscriberCount int64              `bson:"subscriber_count" json:"subscriber_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
