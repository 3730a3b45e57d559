// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Audience entities
	ensure("users", usersSchema())
	ensure("groups", groupsSchema())
	ensure("topics", topicsSchema())

	// Ledgers
	ensure("group_memberships", groupMembershipsSchema())
	ensure("topic_subscriptions", subscriptionsSchema())
	ensure("event_invitations", invitationsSchema())

	// Content
	ensure("posts", postsSchema())
	ensure("events", eventsSchema())
	ensure("event_rsvps", rsvpsSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("leases", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func targetKinds() bson.A {
	return bson.A{string(models.TargetUser), string(models.TargetGroup), string(models.TargetTopic)}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "status"},
			"properties": bson.M{
				"full_name":    nonBlank,
				"full_name_ci": bson.M{"bsonType": "string"},
				"email":        bson.M{"bsonType": bson.A{"string", "null"}},
				"status":       bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}},
			},
		},
	}
}

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "created_by", "member_count"},
			"properties": bson.M{
				"name":         nonBlank,
				"name_ci":      nonBlank,
				"created_by":   bson.M{"bsonType": "objectId"},
				"member_count": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"status":       bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}},
			},
		},
	}
}

func topicsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "created_by", "subscriber_count"},
			"properties": bson.M{
				"name":             nonBlank,
				"name_ci":          nonBlank,
				"created_by":       bson.M{"bsonType": "objectId"},
				"subscriber_count": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
			},
		},
	}
}

func groupMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"group_id", "user_id", "role", "active"},
			"properties": bson.M{
				"group_id":  bson.M{"bsonType": "objectId"},
				"user_id":   bson.M{"bsonType": "objectId"},
				"role":      bson.M{"enum": bson.A{models.RoleMember, models.RoleModerator, models.RoleAdmin}},
				"active":    bson.M{"bsonType": "bool"},
				"joined_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func subscriptionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"topic_id", "user_id", "active"},
			"properties": bson.M{
				"topic_id":              bson.M{"bsonType": "objectId"},
				"user_id":               bson.M{"bsonType": "objectId"},
				"active":                bson.M{"bsonType": "bool"},
				"notifications_enabled": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func invitationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"event_id", "invitee_kind", "invitee_id", "active"},
			"properties": bson.M{
				"event_id":     bson.M{"bsonType": "objectId"},
				"invitee_kind": bson.M{"enum": targetKinds()},
				"invitee_id":   bson.M{"bsonType": "objectId"},
				"invited_by":   bson.M{"bsonType": "objectId"},
				"active":       bson.M{"bsonType": "bool"},
			},
		},
	}
}

// postsSchema does not list target_* as required; a reply carries its
// root's target, which the thread engine copies before insert.
func postsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"author_id", "body"},
			"properties": bson.M{
				"author_id":   bson.M{"bsonType": "objectId"},
				"target_type": bson.M{"enum": targetKinds()},
				"target_id":   bson.M{"bsonType": "objectId"},
				"body":        nonBlank,
				"parent_post": bson.M{"bsonType": "objectId"},
				"thread_root": bson.M{"bsonType": "objectId"},
				"reply_count": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
			},
		},
	}
}

func eventsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"creator_id", "title", "starts_at", "is_private", "max_attendees"},
			"properties": bson.M{
				"creator_id":     bson.M{"bsonType": "objectId"},
				"title":          nonBlank,
				"starts_at":      bson.M{"bsonType": "date"},
				"ends_at":        bson.M{"bsonType": "date"},
				"is_private":     bson.M{"bsonType": "bool"},
				"max_attendees":  bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"attendee_count": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
			},
		},
	}
}

func rsvpsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"event_id", "user_id", "status"},
			"properties": bson.M{
				"event_id": bson.M{"bsonType": "objectId"},
				"user_id":  bson.M{"bsonType": "objectId"},
				"status":   bson.M{"enum": bson.A{models.RSVPGoing, models.RSVPMaybe, models.RSVPNotGoing}},
			},
		},
	}
}
