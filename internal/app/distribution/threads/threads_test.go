package threads_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/distribution/threads"
	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newEngine(db *mongo.Database) (*threads.Engine, *poststore.Store) {
	leases := leasestore.New(db, 0, 0, nil)
	resolver := audiencepolicy.New(
		membershipstore.New(db, leases),
		subscriptionstore.New(db, leases),
		invitationstore.New(db),
	)
	posts := poststore.New(db)
	return threads.New(db, posts, resolver, nil), posts
}

func reply(body string) models.Post {
	return models.Post{Body: body}
}

func TestThreadScenario_FlattensAndCountsDirectReplies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, posts := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Poster")
	t2 := fx.CreateTopic(ctx, "Alumni Sports", u.ID)
	fx.Subscribe(ctx, t2.ID, u.ID)
	target := models.Target{Type: models.TargetTopic, ID: t2.ID}
	p1 := fx.CreatePost(ctx, u.ID, target, "P1")

	p2, err := engine.Reply(ctx, u.ID, p1.ID, reply("P2"))
	if err != nil {
		t.Fatalf("reply P2: %v", err)
	}
	p3, err := engine.Reply(ctx, u.ID, p2.ID, reply("P3"))
	if err != nil {
		t.Fatalf("reply P3: %v", err)
	}

	if p3.ThreadRoot == nil || *p3.ThreadRoot != p1.ID {
		t.Errorf("P3.ThreadRoot = %v, want %s", p3.ThreadRoot, p1.ID.Hex())
	}
	if p3.ParentPost == nil || *p3.ParentPost != p2.ID {
		t.Errorf("P3.ParentPost = %v, want %s", p3.ParentPost, p2.ID.Hex())
	}
	if !p3.IsReply || !p3.Target.Equal(target) {
		t.Errorf("P3 should be a reply addressed to %v, got reply=%v target=%v", target, p3.IsReply, p3.Target)
	}

	th, err := engine.Get(ctx, u.ID, p3.ID)
	if err != nil {
		t.Fatalf("Get thread: %v", err)
	}
	if th.Root.ID != p1.ID {
		t.Errorf("root = %s, want P1", th.Root.ID.Hex())
	}
	if len(th.Replies) != 2 || th.Replies[0].ID != p2.ID || th.Replies[1].ID != p3.ID {
		t.Fatalf("replies = %v, want [P2 P3]", ids(th.Replies))
	}
	if th.Replies[0].Author == nil || th.Replies[0].Author.FullName != "Poster" {
		t.Errorf("expected reply author to be denormalized, got %+v", th.Replies[0].Author)
	}

	gotP1, _ := posts.GetByID(ctx, p1.ID)
	gotP2, _ := posts.GetByID(ctx, p2.ID)
	gotP3, _ := posts.GetByID(ctx, p3.ID)
	if gotP1.ReplyCount != 1 {
		t.Errorf("P1.ReplyCount = %d, want 1", gotP1.ReplyCount)
	}
	if gotP2.ReplyCount != 1 {
		t.Errorf("P2.ReplyCount = %d, want 1", gotP2.ReplyCount)
	}
	if gotP3.ReplyCount != 0 {
		t.Errorf("P3.ReplyCount = %d, want 0", gotP3.ReplyCount)
	}
}

func TestReply_DeepChainKeepsRoot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Chain")
	g := fx.CreateGroup(ctx, "Chain Gang", u.ID)
	root := fx.CreatePost(ctx, u.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, "root")

	parent := root.ID
	for depth := 1; depth <= 5; depth++ {
		p, err := engine.Reply(ctx, u.ID, parent, reply(fmt.Sprintf("depth %d", depth)))
		if err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		if p.ThreadRoot == nil || *p.ThreadRoot != root.ID {
			t.Fatalf("depth %d: ThreadRoot = %v, want %s", depth, p.ThreadRoot, root.ID.Hex())
		}
		parent = p.ID
	}
}

func TestReply_ConcurrentRepliesAllCounted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, posts := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	g := fx.CreateGroup(ctx, "Busy", owner.ID)
	root := fx.CreatePost(ctx, owner.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, "root")

	const n = 12
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Reply(ctx, owner.ID, root.ID, reply(fmt.Sprintf("r%d", i)))
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent reply: %v", err)
		}
	}

	got, err := posts.GetByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ReplyCount != n {
		t.Errorf("ReplyCount = %d, want %d", got.ReplyCount, n)
	}
}

func TestReply_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, posts := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	outsider := fx.CreateUser(ctx, "Outsider")
	g := fx.CreateGroup(ctx, "Private Club", owner.ID)
	other := fx.CreateGroup(ctx, "Other Club", owner.ID)
	root := fx.CreatePost(ctx, owner.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, "root")

	t.Run("missing parent", func(t *testing.T) {
		_, err := engine.Reply(ctx, owner.ID, primitive.NewObjectID(), reply("x"))
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("outsider cannot reply", func(t *testing.T) {
		_, err := engine.Reply(ctx, outsider.ID, root.ID, reply("x"))
		if !errors.Is(err, errs.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("reply to a different audience", func(t *testing.T) {
		draft := reply("x")
		draft.Target = models.Target{Type: models.TargetGroup, ID: other.ID}
		_, err := engine.Reply(ctx, owner.ID, root.ID, draft)
		if !errors.Is(err, errs.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	got, _ := posts.GetByID(ctx, root.ID)
	if got.ReplyCount != 0 {
		t.Errorf("failed replies must not change ReplyCount, got %d", got.ReplyCount)
	}
}

func TestGet_ForbiddenForOutsider(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	outsider := fx.CreateUser(ctx, "Outsider")
	g := fx.CreateGroup(ctx, "Secret", owner.ID)
	root := fx.CreatePost(ctx, owner.ID, models.Target{Type: models.TargetGroup, ID: g.ID}, "root")
	r, err := engine.Reply(ctx, owner.ID, root.ID, reply("child"))
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}

	if _, err := engine.Get(ctx, outsider.ID, r.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected ErrForbidden via reply id, got %v", err)
	}
	if _, err := engine.Get(ctx, outsider.ID, primitive.NewObjectID()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown post, got %v", err)
	}
}

func TestDirectThread_BothPartiesParticipate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	engine, _ := newEngine(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sender := fx.CreateUser(ctx, "Sender")
	recipient := fx.CreateUser(ctx, "Recipient")
	bystander := fx.CreateUser(ctx, "Bystander")
	root := fx.CreatePost(ctx, sender.ID, models.Target{Type: models.TargetUser, ID: recipient.ID}, "hello")

	r, err := engine.Reply(ctx, recipient.ID, root.ID, reply("hi back"))
	if err != nil {
		t.Fatalf("recipient reply: %v", err)
	}
	if !r.Target.Equal(root.Target) {
		t.Errorf("reply target = %v, want %v", r.Target, root.Target)
	}
	th, err := engine.Get(ctx, sender.ID, r.ID)
	if err != nil {
		t.Fatalf("sender Get: %v", err)
	}
	if len(th.Replies) != 1 {
		t.Errorf("expected 1 reply, got %d", len(th.Replies))
	}
	if _, err := engine.Reply(ctx, bystander.ID, root.ID, reply("me too")); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("bystander reply: expected ErrForbidden, got %v", err)
	}
}

func ids(views []models.PostView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID.Hex()
	}
	return out
}
