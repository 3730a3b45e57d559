package grouppolicy_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateUser(ctx, "Admin")
	mod := fx.CreateUser(ctx, "Moderator")
	member := fx.CreateUser(ctx, "Member")
	g := fx.CreateGroup(ctx, "Debate", admin.ID)
	fx.AddMember(ctx, g.ID, mod.ID, models.RoleModerator)
	fx.AddMember(ctx, g.ID, member.ID, models.RoleMember)

	tests := []struct {
		name      string
		user      models.User
		admin     bool
		moderates bool
	}{
		{"admin", admin, true, true},
		{"moderator", mod, false, true},
		{"member", member, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isAdmin, err := grouppolicy.IsAdmin(ctx, db, g.ID, tt.user.ID)
			if err != nil {
				t.Fatalf("IsAdmin: %v", err)
			}
			if isAdmin != tt.admin {
				t.Errorf("IsAdmin = %v, want %v", isAdmin, tt.admin)
			}
			canMod, err := grouppolicy.CanModerate(ctx, db, g.ID, tt.user.ID)
			if err != nil {
				t.Fatalf("CanModerate: %v", err)
			}
			if canMod != tt.moderates {
				t.Errorf("CanModerate = %v, want %v", canMod, tt.moderates)
			}
		})
	}

	if err := grouppolicy.RequireAdmin(ctx, db, g.ID, member.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected ErrForbidden for member, got %v", err)
	}
	if err := grouppolicy.RequireAdmin(ctx, db, g.ID, admin.ID); err != nil {
		t.Errorf("admin should pass RequireAdmin: %v", err)
	}
}

func TestIsAdmin_InactiveRowDoesNotCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Owner")
	former := fx.CreateUser(ctx, "Former")
	g := fx.CreateGroup(ctx, "Film", owner.ID)
	fx.AddMember(ctx, g.ID, former.ID, models.RoleAdmin)

	if _, err := db.Collection("group_memberships").UpdateOne(ctx,
		bson.M{"group_id": g.ID, "user_id": former.ID},
		bson.M{"$set": bson.M{"active": false}}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	ok, err := grouppolicy.IsAdmin(ctx, db, g.ID, former.ID)
	if err != nil {
		t.Fatalf("IsAdmin: %v", err)
	}
	if ok {
		t.Error("inactive admin row must not grant admin")
	}
}
