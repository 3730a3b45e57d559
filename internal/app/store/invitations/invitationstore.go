// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/store/queries/targetlookup"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the invitation ledger. Rows are never deleted: revoking flips
// active off so a later invite reactivates the same row. Who may invite is
// the caller's decision.
type Store struct {
	db *mongo.Database
	c  *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, c: db.Collection("event_invitations")}
}

func tripleFilter(eventID primitive.ObjectID, invitee models.Target) bson.M {
	return bson.M{
		"event_id":     eventID,
		"invitee_kind": invitee.Type,
		"invitee_id":   invitee.ID,
	}
}

// Invite grants invitee visibility of eventID. It fails with
// errs.ErrInvalidTarget for an unknown kind, errs.ErrNotFound when the
// invitee does not exist and errs.ErrAlreadyInvited when an active row
// already exists.
func (s *Store) Invite(ctx context.Context, eventID primitive.ObjectID, invitee models.Target, by primitive.ObjectID) (models.Invitation, error) {
	if err := targetlookup.Require(ctx, s.db, invitee); err != nil {
		return models.Invitation{}, err
	}

	now := time.Now().UTC()
	f := tripleFilter(eventID, invitee)
	f["active"] = false

	var inv models.Invitation
	err := s.c.FindOneAndUpdate(ctx, f,
		bson.M{"$set": bson.M{"active": true, "invited_by": by, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inv)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, err
	}

	inv = models.Invitation{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		InviteeKind: invitee.Type,
		InviteeID:   invitee.ID,
		InvitedBy:   by,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invitation{}, fmt.Errorf("%w: %s %s", errs.ErrAlreadyInvited, invitee.Type, invitee.ID.Hex())
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

// Revoke deactivates an active invitation; errs.ErrNotFound if there is none.
func (s *Store) Revoke(ctx context.Context, eventID primitive.ObjectID, invitee models.Target) error {
	if !invitee.Type.Valid() {
		return fmt.Errorf("%w: unknown invitee kind %q", errs.ErrInvalidTarget, invitee.Type)
	}
	f := tripleFilter(eventID, invitee)
	f["active"] = true
	res, err := s.c.UpdateOne(ctx, f, bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("invitation")
	}
	return nil
}

// ListByEvent returns an event's invitations, newest first.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID, activeOnly bool) ([]models.Invitation, error) {
	filter := bson.M{"event_id": eventID}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Invitation{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvitedEventIDs returns the events with an active invitation naming the
// user directly or any of the given groups or topics.
func (s *Store) InvitedEventIDs(ctx context.Context, userID primitive.ObjectID, groupIDs, topicIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	or := bson.A{bson.M{"invitee_kind": models.TargetUser, "invitee_id": userID}}
	if len(groupIDs) > 0 {
		or = append(or, bson.M{"invitee_kind": models.TargetGroup, "invitee_id": bson.M{"$in": groupIDs}})
	}
	if len(topicIDs) > 0 {
		or = append(or, bson.M{"invitee_kind": models.TargetTopic, "invitee_id": bson.M{"$in": topicIDs}})
	}

	raw, err := s.c.Distinct(ctx, "event_id", bson.M{"active": true, "$or": or})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReachesUser reports whether an active invitation to eventID reaches
// userID directly, through an active group membership or through an active
// topic subscription. Ledger rows are joined inside one aggregation so
// there is no window between reading the user's memberships and reading the
// invitations.
func (s *Store) ReachesUser(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	ledgerLookup := func(from, field string, kind models.TargetType, as string) bson.D {
		return bson.D{{Key: "$lookup", Value: bson.M{
			"from": from,
			"let":  bson.M{"kind": "$invitee_kind", "iid": "$invitee_id"},
			"pipeline": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{
					"user_id": userID,
					"active":  true,
					"$expr": bson.M{"$and": bson.A{
						bson.M{"$eq": bson.A{"$$kind", string(kind)}},
						bson.M{"$eq": bson.A{"$" + field, "$$iid"}},
					}},
				}}},
				{{Key: "$limit", Value: 1}},
				{{Key: "$project", Value: bson.M{"_id": 1}}},
			},
			"as": as,
		}}}
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID, "active": true}}},
		ledgerLookup("group_memberships", "group_id", models.TargetGroup, "via_group"),
		ledgerLookup("topic_subscriptions", "topic_id", models.TargetTopic, "via_topic"),
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"invitee_kind": models.TargetUser, "invitee_id": userID},
			bson.M{"via_group.0": bson.M{"$exists": true}},
			bson.M{"via_topic.0": bson.M{"$exists": true}},
		}}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}

	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)
	found := cur.Next(ctx)
	return found, cur.Err()
}
