package topicstore_test

import (
	"errors"
	"testing"

	topicstore "github.com/dalemusser/alumnihub/internal/app/store/topics"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Topic{Name: "Career Advice", CreatedBy: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Career Advice" || got.SubscriberCount != 0 {
		t.Errorf("unexpected topic: %+v", got)
	}

	ok, err := store.Exists(ctx, created.ID)
	if err != nil || !ok {
		t.Errorf("Exists: got %v, %v", ok, err)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Topic{Name: "Jobs"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Topic{Name: "JOBS"}); !errors.Is(err, topicstore.ErrDuplicateTopicName) {
		t.Errorf("expected ErrDuplicateTopicName, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := topicstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
