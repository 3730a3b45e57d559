package reqdecode_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/alumnihub/internal/app/system/reqdecode"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listQuery struct {
	Q        string `schema:"q"`
	TopLevel bool   `schema:"top_level"`
	Start    int    `schema:"start" validate:"gte=0"`
}

type rsvpBody struct {
	Status string `json:"status" validate:"required,oneof=going maybe not_going"`
	Note   string `json:"note" validate:"max=500"`
}

func TestQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts?q=sailing&top_level=true&start=51&unknown=1", nil)
	var q listQuery
	if err := reqdecode.Query(r, &q); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if q.Q != "sailing" || !q.TopLevel || q.Start != 51 {
		t.Errorf("decoded %+v", q)
	}

	r = httptest.NewRequest("GET", "/posts?start=abc", nil)
	if err := reqdecode.Query(r, &listQuery{}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestJSON_ValidatesWithJSONNames(t *testing.T) {
	r := testutil.NewJSONRequest(t, "POST", "/events/x/rsvp", map[string]string{"status": "perhaps"})
	var b rsvpBody
	err := reqdecode.JSON(r, &b)
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "status must be one of") {
		t.Errorf("message should name the JSON field: %v", err)
	}

	r = testutil.NewJSONRequest(t, "POST", "/events/x/rsvp", map[string]string{"status": "going"})
	if err := reqdecode.JSON(r, &b); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if b.Status != "going" {
		t.Errorf("Status = %q", b.Status)
	}
}

func TestJSON_Malformed(t *testing.T) {
	r := httptest.NewRequest("POST", "/posts", strings.NewReader("{not json"))
	if err := reqdecode.JSON(r, &rsvpBody{}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPathID(t *testing.T) {
	id := primitive.NewObjectID()
	r := testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "id", id.Hex())
	got, err := reqdecode.PathID(r, "id")
	if err != nil || got != id {
		t.Errorf("PathID = %s, %v", got.Hex(), err)
	}

	r = testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "id", "nope")
	if _, err := reqdecode.PathID(r, "id"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTime(t *testing.T) {
	if got, err := reqdecode.Time("", "from"); got != nil || err != nil {
		t.Errorf("empty: %v %v", got, err)
	}
	got, err := reqdecode.Time("2026-06-01T18:00:00Z", "from")
	if err != nil || got == nil || got.Year() != 2026 {
		t.Errorf("valid: %v %v", got, err)
	}
	if _, err := reqdecode.Time("June 1st", "from"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTarget(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := reqdecode.Target(" Group ", id.Hex())
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if got.Type != models.TargetGroup || got.ID != id {
		t.Errorf("Target = %+v", got)
	}

	for _, tc := range [][2]string{{"event", id.Hex()}, {"", id.Hex()}, {"user", "zzz"}} {
		if _, err := reqdecode.Target(tc[0], tc[1]); !errors.Is(err, errs.ErrInvalidTarget) {
			t.Errorf("Target(%q, %q) = %v, want ErrInvalidTarget", tc[0], tc[1], err)
		}
	}
}
