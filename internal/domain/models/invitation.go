package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation grants event visibility to a user directly, or to every
// current member/subscriber of a group/topic. Group and topic invitations
// are resolved against the ledgers at read time, never snapshotted.
//
// Exactly one document per (event_id, invitee_kind, invitee_id); revoking
// flips Active to false so a later re-invite can reactivate it.
type Invitation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     primitive.ObjectID `bson:"event_id" json:"event_id"`
	InviteeKind TargetType         `bson:"invitee_kind" json:"invitee_kind"`
	InviteeID   primitive.ObjectID `bson:"invitee_id" json:"invitee_id"`
	InvitedBy   primitive.ObjectID `bson:"invited_by" json:"invited_by"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Invitee returns the invitation's invitee as a Target.
func (i Invitation) Invitee() Target {
	return Target{Type: i.InviteeKind, ID: i.InviteeID}
}
