// internal/app/store/leases/leasestore.go
package leasestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrBusy is returned when another owner still holds the lease after all
// retries are spent.
var ErrBusy = errors.New("lease is held by another owner")

// ErrLost is returned when the guarded work did not finish before the lease
// ran out, or when Fence finds the lease has been taken over.
var ErrLost = errors.New("lease expired before the guarded work finished")

// Defaults used when New is given zero values.
const (
	DefaultTTL      = 10 * time.Second
	DefaultMaxTries = 40
)

// Store hands out short-lived exclusive leases keyed by string. A lease is
// one document {_id: key, owner, expires_at}; an expired lease may be taken
// over, and a TTL index reaps leases whose holder died.
//
// Leases serialize read-check-write sequences that span several documents,
// such as counting going RSVPs before admitting another one.
type Store struct {
	c        *mongo.Collection
	ttl      time.Duration
	maxTries int
	log      *zap.Logger
}

func New(db *mongo.Database, ttl time.Duration, maxTries int, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{c: db.Collection("leases"), ttl: ttl, maxTries: maxTries, log: log}
}

// EventKey is the lease key guarding an event's RSVP capacity.
func EventKey(id primitive.ObjectID) string { return "event:" + id.Hex() }

// GroupKey is the lease key guarding a group's membership rows.
func GroupKey(id primitive.ObjectID) string { return "group:" + id.Hex() }

// TopicKey is the lease key guarding a topic's subscription rows.
func TopicKey(id primitive.ObjectID) string { return "topic:" + id.Hex() }

// Lease is a held lease. Release it exactly once.
type Lease struct {
	s         *Store
	key       string
	owner     string
	expiresAt time.Time
}

type leaseCtxKey struct{}

// margin is how long before expiry With cancels the guarded work. Another
// owner can take the lease over only once it has expired, so the work must
// be abandoned while the lease is still ours.
func (s *Store) margin() time.Duration {
	m := s.ttl / 5
	if m < 10*time.Millisecond {
		m = 10 * time.Millisecond
	}
	if m >= s.ttl {
		m = s.ttl / 2
	}
	return m
}

// Acquire takes the lease for key, retrying with backoff while it is held
// elsewhere.
func (s *Store) Acquire(ctx context.Context, key string) (*Lease, error) {
	owner := uuid.NewString()
	retrier := retry.NewRetrier(s.maxTries, 5*time.Millisecond, 100*time.Millisecond)

	var expiresAt time.Time
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		exp, err := s.tryAcquire(ctx, key, owner)
		if err == nil {
			expiresAt = exp
			return nil
		}
		if errors.Is(err, ErrBusy) {
			return err
		}
		return retry.Stop(err)
	})
	if err != nil {
		if errors.Is(err, ErrBusy) {
			s.log.Warn("lease busy", zap.String("key", key), zap.Int("tries", s.maxTries))
		}
		return nil, err
	}
	return &Lease{s: s, key: key, owner: owner, expiresAt: expiresAt}, nil
}

func (s *Store) tryAcquire(ctx context.Context, key, owner string) (time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	_, err := s.c.InsertOne(ctx, bson.M{
		"_id":        key,
		"owner":      owner,
		"expires_at": expiresAt,
	})
	if err == nil {
		return expiresAt, nil
	}
	if !wafflemongo.IsDup(err) {
		return time.Time{}, err
	}

	// Held: take it over only if the holder let it expire.
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"owner": owner, "expires_at": expiresAt}},
	)
	if err != nil {
		return time.Time{}, err
	}
	if res.MatchedCount == 0 {
		return time.Time{}, ErrBusy
	}
	s.log.Debug("took over expired lease", zap.String("key", key))
	return expiresAt, nil
}

// ExpiresAt is when another owner may take the lease over.
func (l *Lease) ExpiresAt() time.Time { return l.expiresAt }

// Release drops the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.s.c.DeleteOne(ctx, bson.M{"_id": l.key, "owner": l.owner})
	return err
}

// With runs fn while holding the lease for key. fn's context is cancelled a
// margin before the lease expires; if fn fails because of that deadline the
// error wraps ErrLost. Inside a transaction fn should call Fence so a
// takeover cannot interleave with its writes.
func (s *Store) With(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l, err := s.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context so a cancelled caller does not strand the lease until expiry.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(rctx); err != nil {
			s.log.Warn("lease release failed", zap.String("key", key), zap.Error(err))
		}
	}()

	fctx, cancel := context.WithDeadline(ctx, l.expiresAt.Add(-s.margin()))
	defer cancel()
	fctx = context.WithValue(fctx, leaseCtxKey{}, l)

	err = fn(fctx)
	if err != nil && ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
		s.log.Warn("lease ran out during guarded work", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrLost, key, err)
	}
	return err
}

// Fence checks that the lease With put on ctx is still held by us and bumps
// its document. Called first inside a transaction, the write makes a later
// takeover wait for the transaction to finish, and a takeover that already
// happened aborts it with ErrLost. Without a lease on ctx it does nothing.
func (s *Store) Fence(ctx context.Context) error {
	l, ok := ctx.Value(leaseCtxKey{}).(*Lease)
	if !ok {
		return nil
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": l.key, "owner": l.owner},
		bson.M{"$inc": bson.M{"fence": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s was taken over", ErrLost, l.key)
	}
	return nil
}
