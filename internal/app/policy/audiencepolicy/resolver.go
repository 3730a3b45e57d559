// internal/app/policy/audiencepolicy/resolver.go
package audiencepolicy

import (
	"context"
	"fmt"

	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	"github.com/dalemusser/alumnihub/internal/app/system/tracing"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = tracing.Tracer("audiencepolicy")

// Audience is the set of groups and topics an actor currently reaches.
// Both slices are non-nil so they can be used directly in $in predicates.
type Audience struct {
	GroupIDs []primitive.ObjectID `json:"group_ids"`
	TopicIDs []primitive.ObjectID `json:"topic_ids"`
}

// HasGroup reports whether id is one of the actor's active groups.
func (a Audience) HasGroup(id primitive.ObjectID) bool {
	for _, g := range a.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}

// HasTopic reports whether id is one of the actor's active topics.
func (a Audience) HasTopic(id primitive.ObjectID) bool {
	for _, t := range a.TopicIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Resolver answers read and write questions against the live ledgers.
// Nothing is cached; every call sees the ledgers as they are now.
type Resolver struct {
	memberships   *membershipstore.Store
	subscriptions *subscriptionstore.Store
	invitations   *invitationstore.Store
}

func New(m *membershipstore.Store, s *subscriptionstore.Store, inv *invitationstore.Store) *Resolver {
	return &Resolver{memberships: m, subscriptions: s, invitations: inv}
}

// Reachable returns the groups the actor is an active member of and the
// topics the actor is actively subscribed to.
func (r *Resolver) Reachable(ctx context.Context, actorID primitive.ObjectID) (Audience, error) {
	ctx, span := tracer.Start(ctx, "audience.Reachable")
	defer span.End()

	var aud Audience
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := r.memberships.ActiveGroupIDs(gctx, actorID)
		aud.GroupIDs = ids
		return err
	})
	g.Go(func() error {
		ids, err := r.subscriptions.ActiveTopicIDs(gctx, actorID)
		aud.TopicIDs = ids
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Audience{}, fmt.Errorf("resolve audience: %w", err)
	}
	if aud.GroupIDs == nil {
		aud.GroupIDs = []primitive.ObjectID{}
	}
	if aud.TopicIDs == nil {
		aud.TopicIDs = []primitive.ObjectID{}
	}
	span.SetAttributes(
		attribute.Int("audience.groups", len(aud.GroupIDs)),
		attribute.Int("audience.topics", len(aud.TopicIDs)),
	)
	return aud, nil
}

// CanWrite reports whether the actor may address content to t. Anyone may
// write to a user; groups and topics need an active ledger row.
func (r *Resolver) CanWrite(ctx context.Context, actorID primitive.ObjectID, t models.Target) (bool, error) {
	switch t.Type {
	case models.TargetUser:
		return true, nil
	case models.TargetGroup:
		return r.memberships.IsActive(ctx, t.ID, actorID)
	case models.TargetTopic:
		return r.subscriptions.IsActive(ctx, t.ID, actorID)
	default:
		return false, fmt.Errorf("%w: %q", errs.ErrInvalidTarget, t.Type)
	}
}

// RequireWrite is CanWrite that fails with ErrForbidden on denial.
func (r *Resolver) RequireWrite(ctx context.Context, actorID primitive.ObjectID, t models.Target) error {
	ok, err := r.CanWrite(ctx, actorID, t)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Forbidden("cannot post to this " + string(t.Type))
	}
	return nil
}

// CanReadPost reports whether the actor may read a post. p must be a
// thread root (or a reply carrying its root's target). A direct post is
// readable by its recipient and its author.
func (r *Resolver) CanReadPost(ctx context.Context, actorID primitive.ObjectID, p models.Post) (bool, error) {
	if p.Type == models.TargetUser {
		return p.Target.ID == actorID || p.AuthorID == actorID, nil
	}
	return r.CanWrite(ctx, actorID, p.Target)
}

// CanReadEvent reports whether the actor may see an event: creators and
// public events always; private events only through an active invitation
// that reaches the actor directly or through a current group or topic.
func (r *Resolver) CanReadEvent(ctx context.Context, actorID primitive.ObjectID, e models.Event) (bool, error) {
	if e.CreatorID == actorID || !e.IsPrivate {
		return true, nil
	}
	ctx, span := tracer.Start(ctx, "audience.CanReadEvent")
	defer span.End()

	ok, err := r.invitations.ReachesUser(ctx, e.ID, actorID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("audience.invited", ok))
	return ok, nil
}

// RequireReadEvent is CanReadEvent that fails with ErrForbidden on denial.
func (r *Resolver) RequireReadEvent(ctx context.Context, actorID primitive.ObjectID, e models.Event) error {
	ok, err := r.CanReadEvent(ctx, actorID, e)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Forbidden("you are not invited to this event")
	}
	return nil
}

// PostFilter is the access predicate for posts: direct posts to or from
// the actor, and posts in the actor's groups and topics.
func PostFilter(actorID primitive.ObjectID, aud Audience) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"target_type": models.TargetUser, "target_id": actorID},
		bson.M{"target_type": models.TargetUser, "author_id": actorID},
		bson.M{"target_type": models.TargetGroup, "target_id": bson.M{"$in": aud.GroupIDs}},
		bson.M{"target_type": models.TargetTopic, "target_id": bson.M{"$in": aud.TopicIDs}},
	}}
}

// EventFilter returns the access predicate for events: the actor's own,
// every public event, and private events the actor is invited to.
func (r *Resolver) EventFilter(ctx context.Context, actorID primitive.ObjectID) (bson.M, error) {
	ctx, span := tracer.Start(ctx, "audience.EventFilter")
	defer span.End()

	aud, err := r.Reachable(ctx, actorID)
	if err != nil {
		return nil, err
	}
	invited, err := r.invitations.InvitedEventIDs(ctx, actorID, aud.GroupIDs, aud.TopicIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("audience.invited_events", len(invited)))
	return bson.M{"$or": bson.A{
		bson.M{"creator_id": actorID},
		bson.M{"is_private": false},
		bson.M{"_id": bson.M{"$in": invited}},
	}}, nil
}
