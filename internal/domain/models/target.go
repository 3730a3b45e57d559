package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetType is the kind of audience a piece of content is addressed to.
type TargetType string

const (
	TargetUser  TargetType = "user"
	TargetGroup TargetType = "group"
	TargetTopic TargetType = "topic"
)

// Valid reports whether t is one of the three supported kinds.
func (t TargetType) Valid() bool {
	return t == TargetUser || t == TargetGroup || t == TargetTopic
}

// Target is a tagged reference to a user, group or topic document.
// Its fields are inlined into the owning document as target_type/target_id.
type Target struct {
	Type TargetType         `bson:"target_type" json:"target_type"`
	ID   primitive.ObjectID `bson:"target_id" json:"target_id"`
}

// Equal reports whether two targets reference the same entity.
func (t Target) Equal(o Target) bool {
	return t.Type == o.Type && t.ID == o.ID
}
