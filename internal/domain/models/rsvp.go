package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RSVP statuses.
const (
	RSVPGoing    = "going"
	RSVPMaybe    = "maybe"
	RSVPNotGoing = "not_going"
)

// ValidRSVPStatus reports whether s is going, maybe or not_going.
func ValidRSVPStatus(s string) bool {
	return s == RSVPGoing || s == RSVPMaybe || s == RSVPNotGoing
}

// RSVP is one actor's response to an event. Exactly one document per
// (event_id, user_id); a new response overwrites the previous one.
type RSVP struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID   primitive.ObjectID `bson:"event_id" json:"event_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Status    string             `bson:"status" json:"status"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
