// internal/app/store/subscriptions/subscriptionstore.go
package subscriptionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	topicstore "github.com/dalemusser/alumnihub/internal/app/store/topics"
	"github.com/dalemusser/alumnihub/internal/app/system/txn"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is the subscription ledger: the membership ledger without roles.
type Store struct {
	db     *mongo.Database
	c      *mongo.Collection
	topics *topicstore.Store
	leases *leasestore.Store
}

func New(db *mongo.Database, leases *leasestore.Store) *Store {
	return &Store{
		db:     db,
		c:      db.Collection("topic_subscriptions"),
		topics: topicstore.New(db),
		leases: leases,
	}
}

func (s *Store) Get(ctx context.Context, topicID, userID primitive.ObjectID) (models.Subscription, error) {
	var sub models.Subscription
	err := s.c.FindOne(ctx, bson.M{"topic_id": topicID, "user_id": userID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Subscription{}, errs.NotFound("subscription")
		}
		return models.Subscription{}, err
	}
	return sub, nil
}

// IsActive reports whether userID actively follows topicID.
func (s *Store) IsActive(ctx context.Context, topicID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"topic_id": topicID, "user_id": userID, "active": true}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActiveTopicIDs returns every topic the user actively follows.
func (s *Store) ActiveTopicIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	raw, err := s.c.Distinct(ctx, "topic_id", bson.M{"user_id": userID, "active": true})
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

// Recount recomputes subscriber_count from the live ledger and persists it.
func (s *Store) Recount(ctx context.Context, topicID primitive.ObjectID) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"topic_id": topicID, "active": true})
	if err != nil {
		return 0, err
	}
	if err := s.topics.SetSubscriberCount(ctx, topicID, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Reconcile recounts a topic under its lease and reports whether the stored
// subscriber_count had drifted from the ledger.
func (s *Store) Reconcile(ctx context.Context, topicID primitive.ObjectID) (bool, error) {
	var drifted bool
	err := s.leases.With(ctx, leasestore.TopicKey(topicID), func(ctx context.Context) error {
		tp, err := s.topics.GetByID(ctx, topicID)
		if err != nil {
			return err
		}
		n, err := s.Recount(ctx, topicID)
		if err != nil {
			return err
		}
		drifted = n != tp.SubscriberCount
		return nil
	})
	return drifted, err
}

// Subscribe is idempotent like membershipstore.Join. A reactivated row has
// notifications switched back on.
func (s *Store) Subscribe(ctx context.Context, topicID, userID primitive.ObjectID) (models.Subscription, int64, error) {
	if _, err := s.topics.GetByID(ctx, topicID); err != nil {
		return models.Subscription{}, 0, err
	}

	var sub models.Subscription
	var count int64
	err := s.leases.With(ctx, leasestore.TopicKey(topicID), func(ctx context.Context) error {
		return txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
			if err := s.leases.Fence(ctx); err != nil {
				return err
			}
			var err error
			sub, err = s.activate(ctx, topicID, userID)
			if err != nil {
				return err
			}
			count, err = s.Recount(ctx, topicID)
			return err
		})
	})
	if err != nil {
		return models.Subscription{}, 0, err
	}
	return sub, count, nil
}

func (s *Store) activate(ctx context.Context, topicID, userID primitive.ObjectID) (models.Subscription, error) {
	now := time.Now().UTC()
	existing, err := s.Get(ctx, topicID, userID)
	switch {
	case err == nil && existing.Active:
		return existing, nil
	case err == nil:
		_, err = s.c.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
			"active":                true,
			"notifications_enabled": true,
			"subscribed_at":         now,
			"updated_at":            now,
		}})
		if err != nil {
			return models.Subscription{}, err
		}
		existing.Active = true
		existing.NotificationsEnabled = true
		existing.SubscribedAt = now
		existing.UpdatedAt = now
		return existing, nil
	case errors.Is(err, errs.ErrNotFound):
		sub := models.Subscription{
			ID:                   primitive.NewObjectID(),
			TopicID:              topicID,
			UserID:               userID,
			Active:               true,
			NotificationsEnabled: true,
			SubscribedAt:         now,
			UpdatedAt:            now,
		}
		if _, err := s.c.InsertOne(ctx, sub); err != nil {
			return models.Subscription{}, err
		}
		return sub, nil
	default:
		return models.Subscription{}, err
	}
}

// Unsubscribe deactivates the subscription; errs.ErrNotMember when there is
// no active one.
func (s *Store) Unsubscribe(ctx context.Context, topicID, userID primitive.ObjectID) (int64, error) {
	var count int64
	err := s.leases.With(ctx, leasestore.TopicKey(topicID), func(ctx context.Context) error {
		return txn.Run(ctx, s.db, nil, func(ctx context.Context) error {
			if err := s.leases.Fence(ctx); err != nil {
				return err
			}
			res, err := s.c.UpdateOne(ctx,
				bson.M{"topic_id": topicID, "user_id": userID, "active": true},
				bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
			)
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("%w: not subscribed to this topic", errs.ErrNotMember)
			}
			count, err = s.Recount(ctx, topicID)
			return err
		})
	})
	return count, err
}

// SetNotifications toggles notifications on an active subscription.
func (s *Store) SetNotifications(ctx context.Context, topicID, userID primitive.ObjectID, enabled bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"topic_id": topicID, "user_id": userID, "active": true},
		bson.M{"$set": bson.M{"notifications_enabled": enabled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: not subscribed to this topic", errs.ErrNotMember)
	}
	return nil
}
