// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The unique indexes here carry the ledger invariants: one membership per
(user, group), one subscription per (user, topic), one invitation per
(event, invitee kind, invitee id) and one RSVP per (event, user).
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"groups", ensureGroups},
		{"topics", ensureTopics},
		{"group_memberships", ensureGroupMemberships},
		{"topic_subscriptions", ensureTopicSubscriptions},
		{"event_invitations", ensureEventInvitations},
		{"posts", ensurePosts},
		{"events", ensureEvents},
		{"event_rsvps", ensureEventRSVPs},
		{"leases", ensureLeases},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}
			// Name or uniqueness differs: drop and recreate with the desired options.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci__id"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("groups"), []mongo.IndexModel{
		// No duplicate group names (case/diacritics-folded via name_ci)
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_groups_nameci"),
		},
	})
}

func ensureTopics(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("topics"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_topics_nameci"),
		},
	})
}

func ensureGroupMemberships(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("group_memberships"), []mongo.IndexModel{
		// Exactly one membership per (user, group); leave/rejoin toggles active
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "group_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_gm_user_group"),
		},
		// Reachable set: a user's active groups
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}, {Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_gm_user_active_group"),
		},
		// Recounts and admin checks
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "active", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_gm_group_active_role"),
		},
	})
}

func ensureTopicSubscriptions(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("topic_subscriptions"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "topic_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_ts_user_topic"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}, {Key: "topic_id", Value: 1}},
			Options: options.Index().SetName("idx_ts_user_active_topic"),
		},
		{
			Keys:    bson.D{{Key: "topic_id", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_ts_topic_active"),
		},
	})
}

func ensureEventInvitations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("event_invitations"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "invitee_kind", Value: 1},
				{Key: "invitee_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_inv_event_kind_invitee"),
		},
		// Visible-events listing: which events invite this user/group/topic
		{
			Keys: bson.D{
				{Key: "invitee_kind", Value: 1},
				{Key: "invitee_id", Value: 1},
				{Key: "active", Value: 1},
			},
			Options: options.Index().SetName("idx_inv_kind_invitee_active"),
		},
	})
}

func ensurePosts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("posts"), []mongo.IndexModel{
		// Access predicate + recency sort
		{
			Keys: bson.D{
				{Key: "target_type", Value: 1},
				{Key: "target_id", Value: 1},
				{Key: "updated_at", Value: -1},
			},
			Options: options.Index().SetName("idx_posts_target_updated"),
		},
		// Thread listing, oldest first
		{
			Keys:    bson.D{{Key: "thread_root", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_posts_root_created__id"),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "body", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("txt_posts_title_body_tags"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "is_private", Value: 1}, {Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("idx_events_private_starts"),
		},
		{
			Keys:    bson.D{{Key: "creator_id", Value: 1}, {Key: "starts_at", Value: 1}},
			Options: options.Index().SetName("idx_events_creator_starts"),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
			},
			Options: options.Index().SetName("txt_events_title_description"),
		},
	})
}

func ensureEventRSVPs(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("event_rsvps"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_rsvp_event_user"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_rsvp_event_status"),
		},
	})
}

func ensureLeases(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("leases"), []mongo.IndexModel{
		// Reap leases abandoned by crashed holders.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_leases_expires"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_timestamp"),
		},
	})
}
