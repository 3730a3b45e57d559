// Package txn runs a group of Mongo writes in a transaction when the
// deployment supports one, and falls back to running them in order when it
// does not (standalone servers used in development and tests).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a session transaction on db's client. fn must use
// the ctx it is given so its operations join the transaction.
//
// If the server rejects transactions (standalone mongod, some proxies), fn is
// run once more without a transaction and the downgrade is logged. Callers
// keep the invariants that matter under concurrency with leases or
// conditional updates, so the fallback only loses all-or-nothing rollback.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return runPlain(ctx, log, fn, err)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return runPlain(ctx, log, fn, err)
	}
	return err
}

func runPlain(ctx context.Context, log *zap.Logger, fn func(ctx context.Context) error, cause error) error {
	if log != nil {
		log.Debug("transactions unavailable; running writes without a transaction", zap.Error(cause))
	}
	return fn(ctx)
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, IllegalOperation (legacy), OperationNotSupportedInTransaction
			return true
		}
	}
	s := strings.ToLower(err.Error())
	hasTxn := strings.Contains(s, "transaction")
	switch {
	case hasTxn && strings.Contains(s, "replica set"):
		return true
	case hasTxn && strings.Contains(s, "session"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	case strings.Contains(s, "illegal operation"):
		return true
	}
	return false
}
