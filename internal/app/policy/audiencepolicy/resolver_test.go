package audiencepolicy_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type env struct {
	resolver *audiencepolicy.Resolver
	members  *membershipstore.Store
	subs     *subscriptionstore.Store
}

func newEnv(db *mongo.Database) env {
	leases := leasestore.New(db, 0, 0, nil)
	m := membershipstore.New(db, leases)
	s := subscriptionstore.New(db, leases)
	return env{
		resolver: audiencepolicy.New(m, s, invitationstore.New(db)),
		members:  m,
		subs:     s,
	}
}

func TestReachable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	u := fx.CreateUser(ctx, "Reader")

	aud, err := e.resolver.Reachable(ctx, u.ID)
	if err != nil {
		t.Fatalf("Reachable: %v", err)
	}
	if aud.GroupIDs == nil || aud.TopicIDs == nil {
		t.Fatal("empty audience must have non-nil slices")
	}
	if len(aud.GroupIDs) != 0 || len(aud.TopicIDs) != 0 {
		t.Fatalf("expected empty audience, got %+v", aud)
	}

	g1 := fx.CreateGroup(ctx, "Class of 2001", owner.ID)
	g2 := fx.CreateGroup(ctx, "Class of 2002", owner.ID)
	tp := fx.CreateTopic(ctx, "Careers", owner.ID)
	fx.AddMember(ctx, g1.ID, u.ID, models.RoleMember)
	fx.AddMember(ctx, g2.ID, u.ID, models.RoleMember)
	fx.Subscribe(ctx, tp.ID, u.ID)

	if _, err := e.members.Leave(ctx, g2.ID, u.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	aud, err = e.resolver.Reachable(ctx, u.ID)
	if err != nil {
		t.Fatalf("Reachable: %v", err)
	}
	if !aud.HasGroup(g1.ID) || aud.HasGroup(g2.ID) || len(aud.GroupIDs) != 1 {
		t.Errorf("groups = %v, want only %s", aud.GroupIDs, g1.ID.Hex())
	}
	if !aud.HasTopic(tp.ID) || len(aud.TopicIDs) != 1 {
		t.Errorf("topics = %v, want only %s", aud.TopicIDs, tp.ID.Hex())
	}
}

func TestCanWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	member := fx.CreateUser(ctx, "Member")
	outsider := fx.CreateUser(ctx, "Outsider")
	g := fx.CreateGroup(ctx, "Rowing", owner.ID)
	tp := fx.CreateTopic(ctx, "Startups", owner.ID)
	fx.AddMember(ctx, g.ID, member.ID, models.RoleMember)
	fx.Subscribe(ctx, tp.ID, member.ID)

	tests := []struct {
		name   string
		actor  primitive.ObjectID
		target models.Target
		want   bool
	}{
		{"user target always writable", outsider.ID, models.Target{Type: models.TargetUser, ID: member.ID}, true},
		{"group member", member.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, true},
		{"group outsider", outsider.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, false},
		{"topic subscriber", member.ID, models.Target{Type: models.TargetTopic, ID: tp.ID}, true},
		{"topic outsider", outsider.ID, models.Target{Type: models.TargetTopic, ID: tp.ID}, false},
		{"unknown group", member.ID, models.Target{Type: models.TargetGroup, ID: primitive.NewObjectID()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.resolver.CanWrite(ctx, tt.actor, tt.target)
			if err != nil {
				t.Fatalf("CanWrite: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanWrite = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := e.resolver.CanWrite(ctx, member.ID, models.Target{Type: "channel", ID: g.ID})
	if !errors.Is(err, errs.ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got %v", err)
	}

	err = e.resolver.RequireWrite(ctx, outsider.ID, models.Target{Type: models.TargetGroup, ID: g.ID})
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCanWrite_FollowsLeave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	u := fx.CreateUser(ctx, "Leaver")
	g := fx.CreateGroup(ctx, "Chess", owner.ID)
	target := models.Target{Type: models.TargetGroup, ID: g.ID}

	if _, _, err := e.members.Join(ctx, g.ID, u.ID); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if ok, _ := e.resolver.CanWrite(ctx, u.ID, target); !ok {
		t.Fatal("member should be able to write")
	}
	if _, err := e.members.Leave(ctx, g.ID, u.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if ok, _ := e.resolver.CanWrite(ctx, u.ID, target); ok {
		t.Error("former member must not be able to write")
	}
}

func TestCanReadEvent_PrivateTopicInvite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	u3 := fx.CreateUser(ctx, "Guest")
	tp := fx.CreateTopic(ctx, "Mentoring", creator.ID)
	ev := fx.CreateEvent(ctx, creator.ID, "Mentor Dinner", true, 0)
	fx.Invite(ctx, ev.ID, models.Target{Type: models.TargetTopic, ID: tp.ID}, creator.ID)

	if ok, err := e.resolver.CanReadEvent(ctx, creator.ID, ev); err != nil || !ok {
		t.Fatalf("creator must read own event: ok=%v err=%v", ok, err)
	}

	err := e.resolver.RequireReadEvent(ctx, u3.ID, ev)
	if !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden before subscribing, got %v", err)
	}

	if _, _, err := e.subs.Subscribe(ctx, tp.ID, u3.ID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := e.resolver.RequireReadEvent(ctx, u3.ID, ev); err != nil {
		t.Fatalf("expected access after subscribing, got %v", err)
	}

	if _, err := e.subs.Unsubscribe(ctx, tp.ID, u3.ID); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if ok, _ := e.resolver.CanReadEvent(ctx, u3.ID, ev); ok {
		t.Error("access must follow the live subscription ledger")
	}
}

func TestCanReadEvent_Public(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	stranger := fx.CreateUser(ctx, "Stranger")
	ev := fx.CreateEvent(ctx, creator.ID, "Open House", false, 0)

	if ok, err := e.resolver.CanReadEvent(ctx, stranger.ID, ev); err != nil || !ok {
		t.Errorf("public event should be readable: ok=%v err=%v", ok, err)
	}
}

func TestCanReadPost_DirectPost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateUser(ctx, "Author")
	recipient := fx.CreateUser(ctx, "Recipient")
	other := fx.CreateUser(ctx, "Other")
	p := fx.CreatePost(ctx, author.ID, models.Target{Type: models.TargetUser, ID: recipient.ID}, "hi")

	for _, tc := range []struct {
		name  string
		actor primitive.ObjectID
		want  bool
	}{
		{"author", author.ID, true},
		{"recipient", recipient.ID, true},
		{"other", other.ID, false},
	} {
		got, err := e.resolver.CanReadPost(ctx, tc.actor, p)
		if err != nil {
			t.Fatalf("%s: CanReadPost: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: CanReadPost = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPostFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fx.CreateUser(ctx, "Me")
	other := fx.CreateUser(ctx, "Other")
	mine := fx.CreateGroup(ctx, "Mine", other.ID)
	theirs := fx.CreateGroup(ctx, "Theirs", other.ID)
	tp := fx.CreateTopic(ctx, "Followed", other.ID)
	fx.AddMember(ctx, mine.ID, me.ID, models.RoleMember)
	fx.Subscribe(ctx, tp.ID, me.ID)

	visible := map[primitive.ObjectID]bool{}
	for _, p := range []models.Post{
		fx.CreatePost(ctx, other.ID, models.Target{Type: models.TargetGroup, ID: mine.ID}, "group"),
		fx.CreatePost(ctx, other.ID, models.Target{Type: models.TargetTopic, ID: tp.ID}, "topic"),
		fx.CreatePost(ctx, other.ID, models.Target{Type: models.TargetUser, ID: me.ID}, "to me"),
		fx.CreatePost(ctx, me.ID, models.Target{Type: models.TargetUser, ID: other.ID}, "from me"),
	} {
		visible[p.ID] = true
	}
	fx.CreatePost(ctx, other.ID, models.Target{Type: models.TargetGroup, ID: theirs.ID}, "hidden")
	fx.CreatePost(ctx, other.ID, models.Target{Type: models.TargetUser, ID: other.ID}, "note to self")

	aud, err := e.resolver.Reachable(ctx, me.ID)
	if err != nil {
		t.Fatalf("Reachable: %v", err)
	}
	cur, err := db.Collection("posts").Find(ctx, audiencepolicy.PostFilter(me.ID, aud))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	var got []models.Post
	if err := cur.All(ctx, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(visible) {
		t.Fatalf("got %d posts, want %d", len(got), len(visible))
	}
	for _, p := range got {
		if !visible[p.ID] {
			t.Errorf("post %s (%q) leaked through the filter", p.ID.Hex(), p.Body)
		}
	}
}

func TestEventFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := newEnv(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fx.CreateUser(ctx, "Me")
	host := fx.CreateUser(ctx, "Host")
	g := fx.CreateGroup(ctx, "Hikers", host.ID)
	fx.AddMember(ctx, g.ID, me.ID, models.RoleMember)

	own := fx.CreateEvent(ctx, me.ID, "Mine", true, 0)
	public := fx.CreateEvent(ctx, host.ID, "Public", false, 0)
	viaGroup := fx.CreateEvent(ctx, host.ID, "Via group", true, 0)
	direct := fx.CreateEvent(ctx, host.ID, "Direct", true, 0)
	hidden := fx.CreateEvent(ctx, host.ID, "Hidden", true, 0)
	fx.Invite(ctx, viaGroup.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, host.ID)
	fx.Invite(ctx, direct.ID, models.Target{Type: models.TargetUser, ID: me.ID}, host.ID)

	filter, err := e.resolver.EventFilter(ctx, me.ID)
	if err != nil {
		t.Fatalf("EventFilter: %v", err)
	}
	ids, err := db.Collection("events").Distinct(ctx, "_id", filter)
	if err != nil {
		t.Fatalf("Distinct: %v", err)
	}
	got := map[primitive.ObjectID]bool{}
	for _, v := range ids {
		got[v.(primitive.ObjectID)] = true
	}
	for _, want := range []primitive.ObjectID{own.ID, public.ID, viaGroup.ID, direct.ID} {
		if !got[want] {
			t.Errorf("expected event %s to be visible", want.Hex())
		}
	}
	if got[hidden.ID] {
		t.Error("uninvited private event leaked through the filter")
	}

	// Revoking the group invitation hides the event on the next call.
	if _, err := db.Collection("event_invitations").UpdateMany(ctx,
		bson.M{"event_id": viaGroup.ID}, bson.M{"$set": bson.M{"active": false}}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	filter, _ = e.resolver.EventFilter(ctx, me.ID)
	n, err := db.Collection("events").CountDocuments(ctx, bson.M{"$and": bson.A{filter, bson.M{"_id": viaGroup.ID}}})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 0 {
		t.Error("revoked invitation must not grant visibility")
	}
}
