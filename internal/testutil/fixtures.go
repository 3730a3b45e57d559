package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data. Documents are
// written straight to the collections so store tests do not depend on the
// code under test to build their preconditions.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active user with a unique email.
func (f *Fixtures) CreateUser(ctx context.Context, fullName string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	id := primitive.NewObjectID()
	u := models.User{
		ID:         id,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      id.Hex() + "@test.local",
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateGroup creates a group whose creator holds an active admin membership.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, creator primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		CreatedBy:   creator,
		MemberCount: 1,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	f.AddMember(ctx, g.ID, creator, models.RoleAdmin)
	f.setCount(ctx, "groups", g.ID, "member_count", 1)
	return g
}

// AddMember inserts an active membership row and bumps member_count.
func (f *Fixtures) AddMember(ctx context.Context, groupID, userID primitive.ObjectID, role string) models.GroupMembership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Role:      role,
		Active:    true,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	f.recount(ctx, "group_memberships", "group_id", groupID, "groups", "member_count")
	return m
}

// CreateTopic creates a topic with no subscribers.
func (f *Fixtures) CreateTopic(ctx context.Context, name string, creator primitive.ObjectID) models.Topic {
	f.t.Helper()

	now := time.Now().UTC()
	tp := models.Topic{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("topics").InsertOne(ctx, tp); err != nil {
		f.t.Fatalf("failed to create test topic: %v", err)
	}
	return tp
}

// Subscribe inserts an active subscription row and bumps subscriber_count.
func (f *Fixtures) Subscribe(ctx context.Context, topicID, userID primitive.ObjectID) models.Subscription {
	f.t.Helper()

	now := time.Now().UTC()
	s := models.Subscription{
		ID:                   primitive.NewObjectID(),
		TopicID:              topicID,
		UserID:               userID,
		Active:               true,
		NotificationsEnabled: true,
		SubscribedAt:         now,
		UpdatedAt:            now,
	}
	if _, err := f.db.Collection("topic_subscriptions").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test subscription: %v", err)
	}
	f.recount(ctx, "topic_subscriptions", "topic_id", topicID, "topics", "subscriber_count")
	return s
}

// CreatePost creates a top-level post addressed to target.
func (f *Fixtures) CreatePost(ctx context.Context, author primitive.ObjectID, target models.Target, body string) models.Post {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Post{
		ID:        primitive.NewObjectID(),
		AuthorID:  author,
		Target:    target,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("posts").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// CreateEvent creates an event starting a day from now.
func (f *Fixtures) CreateEvent(ctx context.Context, creator primitive.ObjectID, title string, private bool, maxAttendees int64) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	e := models.Event{
		ID:           primitive.NewObjectID(),
		CreatorID:    creator,
		Title:        title,
		StartsAt:     now.Add(24 * time.Hour),
		IsPrivate:    private,
		MaxAttendees: maxAttendees,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("events").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

// Invite inserts an active invitation.
func (f *Fixtures) Invite(ctx context.Context, eventID primitive.ObjectID, invitee models.Target, by primitive.ObjectID) models.Invitation {
	f.t.Helper()

	now := time.Now().UTC()
	inv := models.Invitation{
		ID:          primitive.NewObjectID(),
		EventID:     eventID,
		InviteeKind: invitee.Type,
		InviteeID:   invitee.ID,
		InvitedBy:   by,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("event_invitations").InsertOne(ctx, inv); err != nil {
		f.t.Fatalf("failed to create test invitation: %v", err)
	}
	return inv
}

func (f *Fixtures) recount(ctx context.Context, ledger, key string, id primitive.ObjectID, parent, field string) {
	f.t.Helper()
	n, err := f.db.Collection(ledger).CountDocuments(ctx, bson.M{key: id, "active": true})
	if err != nil {
		f.t.Fatalf("recount %s: %v", ledger, err)
	}
	f.setCount(ctx, parent, id, field, n)
}

func (f *Fixtures) setCount(ctx context.Context, coll string, id primitive.ObjectID, field string, n int64) {
	f.t.Helper()
	_, err := f.db.Collection(coll).UpdateByID(ctx, id, bson.M{"$set": bson.M{field: n}})
	if err != nil {
		f.t.Fatalf("set %s.%s: %v", coll, field, err)
	}
}
