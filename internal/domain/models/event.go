package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a dated gathering. Private events are visible only to their
// creator and to invitees (see Invitation). MaxAttendees of zero means no
// capacity limit. AttendeeCount is a materialized count of "going" RSVPs
// and is only ever written by a recount.
type Event struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	CreatorID   primitive.ObjectID `bson:"creator_id" json:"creator_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	StartsAt    time.Time          `bson:"starts_at" json:"starts_at"`
	EndsAt      *time.Time         `bson:"ends_at,omitempty" json:"ends_at,omitempty"`

	IsPrivate     bool  `bson:"is_private" json:"is_private"`
	MaxAttendees  int64 `bson:"max_attendees" json:"max_attendees"`
	AttendeeCount int64 `bson:"attendee_count" json:"attendee_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasCapacity reports whether the event limits the number of attendees.
func (e Event) HasCapacity() bool {
	return e.MaxAttendees > 0
}

// EventView is an event with its creator denormalized for display.
type EventView struct {
	Event   `bson:",inline"`
	Creator *UserRef `bson:"creator,omitempty" json:"creator,omitempty"`
}
