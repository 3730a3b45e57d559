// internal/app/distribution/eventfeed/eventfeed.go
package eventfeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	eventstore "github.com/dalemusser/alumnihub/internal/app/store/events"
	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	rsvpstore "github.com/dalemusser/alumnihub/internal/app/store/rsvps"
	"github.com/dalemusser/alumnihub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/alumnihub/internal/app/system/normalize"
	"github.com/dalemusser/alumnihub/internal/app/system/paging"
	"github.com/dalemusser/alumnihub/internal/app/system/tracing"
	"github.com/dalemusser/alumnihub/internal/app/system/txn"
	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = tracing.Tracer("eventfeed")

// Feed lists, creates and RSVPs to events on behalf of an actor.
type Feed struct {
	db          *mongo.Database
	events      *eventstore.Store
	rsvps       *rsvpstore.Store
	invitations *invitationstore.Store
	leases      *leasestore.Store
	audience    *audiencepolicy.Resolver
	log         *zap.Logger
}

// Deps groups the stores a Feed needs.
type Deps struct {
	Events      *eventstore.Store
	RSVPs       *rsvpstore.Store
	Invitations *invitationstore.Store
	Leases      *leasestore.Store
	Audience    *audiencepolicy.Resolver
}

func New(db *mongo.Database, d Deps, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{
		db:          db,
		events:      d.Events,
		rsvps:       d.RSVPs,
		invitations: d.Invitations,
		leases:      d.Leases,
		audience:    d.Audience,
		log:         log,
	}
}

// Filter narrows a listing. From and To bound starts_at inclusively.
type Filter struct {
	Search   string
	Category string
	From     *time.Time
	To       *time.Time
	Start    int
}

// List returns one page of events the actor may see, soonest first, or
// ranked by relevance when Search is set.
func (f *Feed) List(ctx context.Context, actorID primitive.ObjectID, flt Filter) (paging.Page[models.EventView], error) {
	ctx, span := tracer.Start(ctx, "eventfeed.List")
	defer span.End()

	access, err := f.audience.EventFilter(ctx, actorID)
	if err != nil {
		return paging.Page[models.EventView]{}, err
	}

	and := bson.A{access}
	if c := normalize.Category(flt.Category); c != "" {
		and = append(and, bson.M{"category": c})
	}
	if flt.From != nil || flt.To != nil {
		rng := bson.M{}
		if flt.From != nil {
			rng["$gte"] = flt.From.UTC()
		}
		if flt.To != nil {
			rng["$lte"] = flt.To.UTC()
		}
		and = append(and, bson.M{"starts_at": rng})
	}

	filter := bson.M{"$and": and}
	search := normalize.QueryParam(flt.Search)
	if search != "" {
		filter["$text"] = bson.M{"$search": search}
	}

	start := flt.Start
	if start < 1 {
		start = 1
	}
	rows, err := f.events.List(ctx, eventstore.Query{
		Filter:     filter,
		TextSearch: search != "",
		Skip:       paging.Skip(start),
		Limit:      paging.LimitPlusOne(),
	})
	if err != nil {
		span.RecordError(err)
		return paging.Page[models.EventView]{}, err
	}
	return paging.TrimPage(rows, start), nil
}

// load fetches an event and checks the actor may see it.
func (f *Feed) load(ctx context.Context, actorID, eventID primitive.ObjectID) (models.Event, error) {
	e, err := f.events.GetByID(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if err := f.audience.RequireReadEvent(ctx, actorID, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// Get returns one event with its creator. A private event the actor is not
// invited to fails with ErrForbidden.
func (f *Feed) Get(ctx context.Context, actorID, eventID primitive.ObjectID) (models.EventView, error) {
	if _, err := f.load(ctx, actorID, eventID); err != nil {
		return models.EventView{}, err
	}
	return f.events.View(ctx, eventID)
}

// NewEvent is a create request. Invitees are written through the
// invitation ledger together with the event.
type NewEvent struct {
	Title        string
	Description  string
	Category     string
	Location     string
	StartsAt     time.Time
	EndsAt       *time.Time
	IsPrivate    bool
	MaxAttendees int64
	Invitees     []models.Target
}

func (in NewEvent) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return errs.Invalid("title is required")
	case in.StartsAt.IsZero():
		return errs.Invalid("start time is required")
	case in.EndsAt != nil && in.EndsAt.Before(in.StartsAt):
		return errs.Invalid("end time is before start time")
	case in.MaxAttendees < 0:
		return errs.Invalid("max attendees cannot be negative")
	}
	for _, t := range in.Invitees {
		if !t.Type.Valid() {
			return fmt.Errorf("%w: unknown invitee kind %q", errs.ErrInvalidTarget, t.Type)
		}
	}
	return nil
}

// Create stores an event owned by the actor along with its initial
// invitations. Repeated invitees are collapsed.
func (f *Feed) Create(ctx context.Context, actorID primitive.ObjectID, in NewEvent) (models.Event, []models.Invitation, error) {
	if err := in.validate(); err != nil {
		return models.Event{}, nil, err
	}

	draft := models.Event{
		CreatorID:    actorID,
		Title:        strings.TrimSpace(in.Title),
		Description:  htmlsanitize.Clean(in.Description),
		Category:     normalize.Category(in.Category),
		Location:     strings.TrimSpace(in.Location),
		StartsAt:     in.StartsAt.UTC(),
		IsPrivate:    in.IsPrivate,
		MaxAttendees: in.MaxAttendees,
	}
	if in.EndsAt != nil {
		end := in.EndsAt.UTC()
		draft.EndsAt = &end
	}

	invitees := make([]models.Target, 0, len(in.Invitees))
	for _, t := range in.Invitees {
		dup := false
		for _, seen := range invitees {
			if seen.Equal(t) {
				dup = true
				break
			}
		}
		if !dup {
			invitees = append(invitees, t)
		}
	}

	var (
		created models.Event
		invs    []models.Invitation
	)
	err := txn.Run(ctx, f.db, f.log, func(ctx context.Context) error {
		e, err := f.events.Create(ctx, draft)
		if err != nil {
			return err
		}
		invs = make([]models.Invitation, 0, len(invitees))
		for _, t := range invitees {
			inv, err := f.invitations.Invite(ctx, e.ID, t, actorID)
			if err != nil {
				return err
			}
			invs = append(invs, inv)
		}
		created = e
		return nil
	})
	if err != nil {
		return models.Event{}, nil, err
	}
	return created, invs, nil
}

// RSVPResult is the recorded response and the recounted going total.
type RSVPResult struct {
	RSVP          models.RSVP `json:"rsvp"`
	AttendeeCount int64       `json:"attendee_count"`
}

// RSVP records the actor's response. For capacity-limited events a
// "going" response is admitted only while fewer than MaxAttendees other
// users are going; the count, the write and the recount run under the
// event's lease so concurrent RSVPs cannot overbook.
func (f *Feed) RSVP(ctx context.Context, actorID, eventID primitive.ObjectID, status, note string) (RSVPResult, error) {
	ctx, span := tracer.Start(ctx, "eventfeed.RSVP")
	defer span.End()

	status = strings.ToLower(strings.TrimSpace(status))
	if !models.ValidRSVPStatus(status) {
		return RSVPResult{}, errs.Invalid("status must be going, maybe or not_going")
	}
	e, err := f.load(ctx, actorID, eventID)
	if err != nil {
		return RSVPResult{}, err
	}
	note = strings.TrimSpace(note)

	var res RSVPResult
	err = f.leases.With(ctx, leasestore.EventKey(e.ID), func(ctx context.Context) error {
		return txn.Run(ctx, f.db, f.log, func(ctx context.Context) error {
			if err := f.leases.Fence(ctx); err != nil {
				return err
			}
			if status == models.RSVPGoing && e.HasCapacity() {
				others, err := f.rsvps.CountGoing(ctx, e.ID, actorID)
				if err != nil {
					return err
				}
				if others >= e.MaxAttendees {
					return fmt.Errorf("%w: %d of %d places taken", errs.ErrCapacityExceeded, others, e.MaxAttendees)
				}
			}
			r, err := f.rsvps.Upsert(ctx, e.ID, actorID, status, note)
			if err != nil {
				return err
			}
			n, err := f.rsvps.CountGoing(ctx, e.ID, primitive.NilObjectID)
			if err != nil {
				return err
			}
			if err := f.events.SetAttendeeCount(ctx, e.ID, n); err != nil {
				return err
			}
			res = RSVPResult{RSVP: r, AttendeeCount: n}
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, errs.ErrCapacityExceeded) {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Bool("rsvp.accepted", false))
		return RSVPResult{}, err
	}
	span.SetAttributes(attribute.Bool("rsvp.accepted", true), attribute.Int64("rsvp.attendees", res.AttendeeCount))
	return res, nil
}

// requireCreator loads an event and checks the actor created it.
func (f *Feed) requireCreator(ctx context.Context, actorID, eventID primitive.ObjectID) (models.Event, error) {
	e, err := f.events.GetByID(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if e.CreatorID != actorID {
		return models.Event{}, errs.Forbidden("only the event creator can manage invitations")
	}
	return e, nil
}

// Invite adds or reactivates an invitation. Creator only.
func (f *Feed) Invite(ctx context.Context, actorID, eventID primitive.ObjectID, invitee models.Target) (models.Invitation, error) {
	if _, err := f.requireCreator(ctx, actorID, eventID); err != nil {
		return models.Invitation{}, err
	}
	return f.invitations.Invite(ctx, eventID, invitee, actorID)
}

// Revoke deactivates an invitation. Creator only.
func (f *Feed) Revoke(ctx context.Context, actorID, eventID primitive.ObjectID, invitee models.Target) error {
	if _, err := f.requireCreator(ctx, actorID, eventID); err != nil {
		return err
	}
	return f.invitations.Revoke(ctx, eventID, invitee)
}

// Invitations lists an event's active invitations. Creator only.
func (f *Feed) Invitations(ctx context.Context, actorID, eventID primitive.ObjectID) ([]models.Invitation, error) {
	if _, err := f.requireCreator(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	return f.invitations.ListByEvent(ctx, eventID, true)
}

// Attendees lists the users going to an event the actor can see.
func (f *Feed) Attendees(ctx context.Context, actorID, eventID primitive.ObjectID) ([]rsvpstore.Attendee, error) {
	if _, err := f.load(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	out, err := f.rsvps.ListGoing(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []rsvpstore.Attendee{}
	}
	return out, nil
}
