// Package targetlookup resolves a polymorphic Target{kind, id} to the
// collection holding the referenced document.
package targetlookup

import (
	"context"
	"fmt"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var collections = map[models.TargetType]string{
	models.TargetUser:  "users",
	models.TargetGroup: "groups",
	models.TargetTopic: "topics",
}

// Collection returns the collection name for kind, or errs.ErrInvalidTarget.
func Collection(kind models.TargetType) (string, error) {
	name, ok := collections[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown target type %q", errs.ErrInvalidTarget, kind)
	}
	return name, nil
}

// Exists reports whether the document t refers to exists.
func Exists(ctx context.Context, db *mongo.Database, t models.Target) (bool, error) {
	name, err := Collection(t.Type)
	if err != nil {
		return false, err
	}
	n, err := db.Collection(name).CountDocuments(ctx, bson.M{"_id": t.ID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Require fails with errs.ErrInvalidTarget for an unknown kind and
// errs.ErrNotFound when the referenced document is missing.
func Require(ctx context.Context, db *mongo.Database, t models.Target) error {
	ok, err := Exists(ctx, db, t)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound(string(t.Type))
	}
	return nil
}
