// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/alumnihub/internal/app/store/groups"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	"github.com/dalemusser/alumnihub/internal/app/system/txn"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the membership ledger. Every mutation of a group's rows runs
// under that group's lease and inside a transaction together with the
// member_count recount, so concurrent joins and leaves cannot drift the
// count or remove the last admin.
type Store struct {
	db     *mongo.Database
	c      *mongo.Collection
	groups *groupstore.Store
	leases *leasestore.Store
}

func New(db *mongo.Database, leases *leasestore.Store) *Store {
	return &Store{
		db:     db,
		c:      db.Collection("group_memberships"),
		groups: groupstore.New(db),
		leases: leases,
	}
}

// Get returns the (user, group) row whether active or not.
func (s *Store) Get(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	var m models.GroupMembership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GroupMembership{}, errs.NotFound("membership")
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// GetActive returns the active row or errs.ErrNotMember.
func (s *Store) GetActive(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	var m models.GroupMembership
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID, "active": true}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GroupMembership{}, fmt.Errorf("%w of this group", errs.ErrNotMember)
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// IsActive reports whether userID holds an active membership in groupID.
func (s *Store) IsActive(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID, "active": true}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveGroupIDs returns every group the user actively belongs to.
func (s *Store) ActiveGroupIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "group_id", bson.M{"user_id": userID, "active": true})
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

// CountActive counts active memberships in a group, optionally by role.
func (s *Store) CountActive(ctx context.Context, groupID primitive.ObjectID, role string) (int64, error) {
	filter := bson.M{"group_id": groupID, "active": true}
	if role != "" {
		filter["role"] = role
	}
	return s.c.CountDocuments(ctx, filter)
}

// Recount recomputes member_count from the live ledger and persists it.
func (s *Store) Recount(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	n, err := s.CountActive(ctx, groupID, "")
	if err != nil {
		return 0, err
	}
	if err := s.groups.SetMemberCount(ctx, groupID, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Reconcile recounts a group under its lease and reports whether the stored
// member_count had drifted from the ledger.
func (s *Store) Reconcile(ctx context.Context, groupID primitive.ObjectID) (bool, error) {
	var drifted bool
	err := s.leases.With(ctx, leasestore.GroupKey(groupID), func(ctx context.Context) error {
		g, err := s.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		n, err := s.Recount(ctx, groupID)
		if err != nil {
			return err
		}
		drifted = n != g.MemberCount
		return nil
	})
	return drifted, err
}

// AddAdmin inserts a group creator's admin row. It is only used at group
// creation; ordinary members arrive through Join.
func (s *Store) AddAdmin(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	now := time.Now().UTC()
	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		Role:      models.RoleAdmin,
		Active:    true,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMembership{}, errs.ErrAlreadyMember
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// Join makes userID an active member of groupID. It is idempotent: an
// active row is returned unchanged, an inactive row is reactivated with the
// member role, and otherwise a member row is inserted. The returned count
// is the group's recomputed member_count.
func (s *Store) Join(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, int64, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return models.GroupMembership{}, 0, err
	}

	var m models.GroupMembership
	var count int64
	err := s.leases.With(ctx, leasestore.GroupKey(groupID), func(ctx context.Context) error {
		return txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
			if err := s.leases.Fence(ctx); err != nil {
				return err
			}
			var err error
			m, err = s.activate(ctx, groupID, userID)
			if err != nil {
				return err
			}
			count, err = s.Recount(ctx, groupID)
			return err
		})
	})
	if err != nil {
		return models.GroupMembership{}, 0, err
	}
	return m, count, nil
}

func (s *Store) activate(ctx context.Context, groupID, userID primitive.ObjectID) (models.GroupMembership, error) {
	now := time.Now().UTC()
	existing, err := s.Get(ctx, groupID, userID)
	switch {
	case err == nil && existing.Active:
		return existing, nil
	case err == nil:
		_, err = s.c.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"active":     true,
			"role":       models.RoleMember,
			"joined_at":  now,
			"updated_at": now,
		}})
		if err != nil {
			return models.GroupMembership{}, err
		}
		existing.Active = true
		existing.Role = models.RoleMember
		existing.JoinedAt = now
		existing.UpdatedAt = now
		return existing, nil
	case errors.Is(err, errs.ErrNotFound):
		m := models.GroupMembership{
			ID:        primitive.NewObjectID(),
			GroupID:   groupID,
			UserID:    userID,
			Role:      models.RoleMember,
			Active:    true,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if _, err := s.c.InsertOne(ctx, m); err != nil {
			return models.GroupMembership{}, err
		}
		return m, nil
	default:
		return models.GroupMembership{}, err
	}
}

// Leave deactivates userID's membership. It fails with errs.ErrNotMember
// when no active row exists and errs.ErrLastAdmin when the user is the
// group's only active admin. Returns the recomputed member_count.
func (s *Store) Leave(ctx context.Context, groupID, userID primitive.ObjectID) (int64, error) {
	var count int64
	err := s.leases.With(ctx, leasestore.GroupKey(groupID), func(ctx context.Context) error {
		return txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
			if err := s.leases.Fence(ctx); err != nil {
				return err
			}
			m, err := s.GetActive(ctx, groupID, userID)
			if err != nil {
				return err
			}
			if m.Role == models.RoleAdmin {
				if err := s.requireAnotherAdmin(ctx, groupID); err != nil {
					return err
				}
			}
			_, err = s.c.UpdateByID(ctx, m.ID, bson.M{"$set": bson.M{
				"active":     false,
				"updated_at": time.Now().UTC(),
			}})
			if err != nil {
				return err
			}
			count, err = s.Recount(ctx, groupID)
			return err
		})
	})
	return count, err
}

// SetRole changes the role of an active member. Demoting the only active
// admin fails with errs.ErrLastAdmin. Whether the caller may change roles is
// decided by grouppolicy before this is called.
func (s *Store) SetRole(ctx context.Context, groupID, userID primitive.ObjectID, role string) (models.GroupMembership, error) {
	if !models.ValidGroupRole(role) {
		return models.GroupMembership{}, errs.Invalid(`role must be "member", "moderator" or "admin"`)
	}

	var m models.GroupMembership
	err := s.leases.With(ctx, leasestore.GroupKey(groupID), func(ctx context.Context) error {
		return txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
			if err := s.leases.Fence(ctx); err != nil {
				return err
			}
			var err error
			m, err = s.GetActive(ctx, groupID, userID)
			if err != nil {
				return err
			}
			if m.Role == role {
				return nil
			}
			if m.Role == models.RoleAdmin {
				if err := s.requireAnotherAdmin(ctx, groupID); err != nil {
					return err
				}
			}
			now := time.Now().UTC()
			if _, err := s.c.UpdateByID(ctx, m.ID, bson.M{"$set": bson.M{"role": role, "updated_at": now}}); err != nil {
				return err
			}
			m.Role = role
			m.UpdatedAt = now
			return nil
		})
	})
	if err != nil {
		return models.GroupMembership{}, err
	}
	return m, nil
}

func (s *Store) requireAnotherAdmin(ctx context.Context, groupID primitive.ObjectID) error {
	admins, err := s.CountActive(ctx, groupID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return fmt.Errorf("%w: promote another admin first", errs.ErrLastAdmin)
	}
	return nil
}
