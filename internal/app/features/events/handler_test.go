package events_test

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/distribution/eventfeed"
	"github.com/dalemusser/alumnihub/internal/app/features/events"
	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	eventstore "github.com/dalemusser/alumnihub/internal/app/store/events"
	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	rsvpstore "github.com/dalemusser/alumnihub/internal/app/store/rsvps"
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*events.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	leases := leasestore.New(db, 0, 0, logger)
	inv := invitationstore.New(db)
	resolver := audiencepolicy.New(membershipstore.New(db, leases), subscriptionstore.New(db, leases), inv)
	feed := eventfeed.New(db, eventfeed.Deps{
		Events:      eventstore.New(db),
		RSVPs:       rsvpstore.New(db),
		Invitations: inv,
		Leases:      leases,
		Audience:    resolver,
	}, logger)
	audits := auditlog.New(audit.New(db), logger, auditlog.Config{Community: "off", Content: "db"})
	return events.NewHandler(feed, audits, logger), testutil.NewFixtures(t, db)
}

func withID(t *testing.T, method, path string, actor models.User, eventID string, body any) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	return testutil.WithChiURLParam(testutil.WithActor(req, actor), "id", eventID)
}

func TestHandleCreate_WithInvitees(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	tp := fx.CreateTopic(ctx, "Sailing", creator.ID)

	body := map[string]any{
		"title":         "Regatta",
		"starts_at":     time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"is_private":    true,
		"max_attendees": 10,
		"invitees": []map[string]string{
			{"kind": "topic", "id": tp.ID.Hex()},
			{"kind": "topic", "id": tp.ID.Hex()},
		},
	}
	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithActor(testutil.NewJSONRequest(t, "POST", "/events", body), creator))
	rec.AssertStatus(t, http.StatusCreated)

	var out struct {
		Event       models.Event        `json:"event"`
		Invitations []models.Invitation `json:"invitations"`
	}
	rec.DecodeJSON(t, &out)
	if !out.Event.IsPrivate || out.Event.MaxAttendees != 10 {
		t.Errorf("event = %+v", out.Event)
	}
	if len(out.Invitations) != 1 {
		t.Errorf("got %d invitations, want 1 after collapsing duplicates", len(out.Invitations))
	}

	n, err := fx.DB().Collection("audit_events").CountDocuments(ctx, bson.M{"event_type": audit.EventInvitationCreated})
	if err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if n != 1 {
		t.Errorf("invitation_created events = %d, want 1", n)
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUser(ctx, "U")
	start := time.Now().Add(time.Hour).UTC()

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing title", map[string]any{"starts_at": start}, http.StatusUnprocessableEntity},
		{"missing start", map[string]any{"title": "x"}, http.StatusUnprocessableEntity},
		{"end before start", map[string]any{"title": "x", "starts_at": start, "ends_at": start.Add(-time.Hour)}, http.StatusUnprocessableEntity},
		{"negative capacity", map[string]any{"title": "x", "starts_at": start, "max_attendees": -1}, http.StatusUnprocessableEntity},
		{"bad invitee kind", map[string]any{"title": "x", "starts_at": start, "invitees": []map[string]string{{"kind": "event", "id": u.ID.Hex()}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleCreate(rec, testutil.WithActor(testutil.NewJSONRequest(t, "POST", "/events", tt.body), u))
			rec.AssertStatus(t, tt.status)
		})
	}
}

func TestHandleRSVP_CapacityOverHTTP(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	e := fx.CreateEvent(ctx, creator.ID, "Dinner", false, 3)

	const callers = 8
	users := make([]models.User, callers)
	for i := range users {
		users[i] = fx.CreateUser(ctx, "Guest")
	}

	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testutil.NewRecorder()
			h.HandleRSVP(rec, withID(t, "POST", "/events/x/rsvp", users[i], e.ID.Hex(), map[string]string{"status": "going"}))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	ok, full := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			full++
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if ok != 3 || full != callers-3 {
		t.Errorf("ok=%d full=%d, want 3 and %d", ok, full, callers-3)
	}

	// A full event still takes "maybe".
	rec := testutil.NewRecorder()
	h.HandleRSVP(rec, withID(t, "POST", "/events/x/rsvp", creator, e.ID.Hex(), map[string]string{"status": "maybe"}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"attendee_count":3`)

	rec = testutil.NewRecorder()
	h.ServeAttendees(rec, withID(t, "GET", "/events/x/attendees", creator, e.ID.Hex(), nil))
	rec.AssertStatus(t, http.StatusOK)
	var att struct {
		Items []rsvpstore.Attendee `json:"items"`
	}
	rec.DecodeJSON(t, &att)
	if len(att.Items) != 3 {
		t.Errorf("attendees = %d, want 3", len(att.Items))
	}
}

func TestHandleRSVP_BadStatus(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUser(ctx, "U")
	e := fx.CreateEvent(ctx, u.ID, "E", false, 0)

	rec := testutil.NewRecorder()
	h.HandleRSVP(rec, withID(t, "POST", "/events/x/rsvp", u, e.ID.Hex(), map[string]string{"status": "perhaps"}))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}

func TestPrivateEvent_InviteRevokeFlow(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	guest := fx.CreateUser(ctx, "Guest")
	e := fx.CreateEvent(ctx, creator.ID, "Private dinner", true, 0)

	get := func(actor models.User) int {
		rec := testutil.NewRecorder()
		h.ServeGet(rec, withID(t, "GET", "/events/x", actor, e.ID.Hex(), nil))
		return rec.Code
	}
	if c := get(guest); c != http.StatusForbidden {
		t.Fatalf("uninvited get = %d, want 403", c)
	}

	// Only the creator manages invitations.
	rec := testutil.NewRecorder()
	h.HandleInvite(rec, withID(t, "POST", "/events/x/invitations", guest, e.ID.Hex(), map[string]string{"kind": "user", "id": guest.ID.Hex()}))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	h.HandleInvite(rec, withID(t, "POST", "/events/x/invitations", creator, e.ID.Hex(), map[string]string{"kind": "user", "id": guest.ID.Hex()}))
	rec.AssertStatus(t, http.StatusCreated)

	rec = testutil.NewRecorder()
	h.HandleInvite(rec, withID(t, "POST", "/events/x/invitations", creator, e.ID.Hex(), map[string]string{"kind": "user", "id": guest.ID.Hex()}))
	rec.AssertStatus(t, http.StatusConflict)
	var b apierr.Body
	rec.DecodeJSON(t, &b)
	if b.Error != "already_invited" {
		t.Errorf("error = %q, want already_invited", b.Error)
	}

	if c := get(guest); c != http.StatusOK {
		t.Fatalf("invited get = %d, want 200", c)
	}

	rec = testutil.NewRecorder()
	h.ServeInvitations(rec, withID(t, "GET", "/events/x/invitations", creator, e.ID.Hex(), nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, guest.ID.Hex())

	revoke := func() *testutil.ResponseRecorder {
		req := withID(t, "DELETE", "/events/x/invitations/user/y", creator, e.ID.Hex(), nil)
		req = testutil.WithChiURLParam(req, "kind", "user")
		req = testutil.WithChiURLParam(req, "inviteeID", guest.ID.Hex())
		rec := testutil.NewRecorder()
		h.HandleRevoke(rec, req)
		return rec
	}
	revoke().AssertStatus(t, http.StatusNoContent)
	revoke().AssertStatus(t, http.StatusNotFound)

	if c := get(guest); c != http.StatusForbidden {
		t.Errorf("revoked get = %d, want 403", c)
	}
}

func TestServeList_FiltersAndVisibility(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fx.CreateUser(ctx, "Creator")
	viewer := fx.CreateUser(ctx, "Viewer")
	public := fx.CreateEvent(ctx, creator.ID, "Open house", false, 0)
	fx.CreateEvent(ctx, creator.ID, "Board meeting", true, 0)

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/events", viewer))
	rec.AssertStatus(t, http.StatusOK)
	var page paging.Page[models.EventView]
	rec.DecodeJSON(t, &page)
	if len(page.Items) != 1 || page.Items[0].ID != public.ID {
		t.Errorf("viewer sees %d events, want only the public one", len(page.Items))
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/events?from=yesterday", viewer))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}
