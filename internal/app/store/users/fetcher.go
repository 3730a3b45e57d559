package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.ActorSource so every request is checked against
// the current user record rather than whatever the token or cookie claims.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates an ActorSource that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// ActiveActor loads the user and rejects missing or disabled accounts with
// auth.ErrUnknownActor.
func (f *Fetcher) ActiveActor(ctx context.Context, id primitive.ObjectID) (auth.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{"_id": 1, "full_name": 1, "status": 1})
	if err := f.users.FindOne(ctx, bson.M{"_id": id}, proj).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return auth.Actor{}, auth.ErrUnknownActor
		}
		return auth.Actor{}, err
	}

	if normalize.Status(u.Status) == models.StatusDisabled {
		return auth.Actor{}, auth.ErrUnknownActor
	}
	return auth.Actor{ID: u.ID, Name: u.FullName}, nil
}
