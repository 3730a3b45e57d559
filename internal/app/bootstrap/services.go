// internal/app/bootstrap/services.go
package bootstrap

import (
	"github.com/dalemusser/alumnihub/internal/app/distribution/eventfeed"
	"github.com/dalemusser/alumnihub/internal/app/distribution/postfeed"
	"github.com/dalemusser/alumnihub/internal/app/distribution/threads"
	"github.com/dalemusser/alumnihub/internal/app/policy/audiencepolicy"
	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	eventstore "github.com/dalemusser/alumnihub/internal/app/store/events"
	groupstore "github.com/dalemusser/alumnihub/internal/app/store/groups"
	invitationstore "github.com/dalemusser/alumnihub/internal/app/store/invitations"
	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	poststore "github.com/dalemusser/alumnihub/internal/app/store/posts"
	rsvpstore "github.com/dalemusser/alumnihub/internal/app/store/rsvps"
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	topicstore "github.com/dalemusser/alumnihub/internal/app/store/topics"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// services is the object graph shared by the feature handlers. Every
// ledger shares one lease store so group, topic and event keys are
// serialized across all writers in the process and across replicas.
type services struct {
	Groups        *groupstore.Store
	Topics        *topicstore.Store
	Memberships   *membershipstore.Store
	Subscriptions *subscriptionstore.Store
	Resolver      *audiencepolicy.Resolver
	Posts         *postfeed.Feed
	Events        *eventfeed.Feed
	Audit         *auditlog.Logger
}

func buildServices(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) services {
	leases := leasestore.New(db, appCfg.LeaseTTL, appCfg.LeaseMaxTries, logger)
	memberships := membershipstore.New(db, leases)
	subscriptions := subscriptionstore.New(db, leases)
	invitations := invitationstore.New(db)
	resolver := audiencepolicy.New(memberships, subscriptions, invitations)

	posts := poststore.New(db)
	thread := threads.New(db, posts, resolver, logger)

	return services{
		Groups:        groupstore.New(db),
		Topics:        topicstore.New(db),
		Memberships:   memberships,
		Subscriptions: subscriptions,
		Resolver:      resolver,
		Posts:         postfeed.New(db, posts, resolver, thread),
		Events: eventfeed.New(db, eventfeed.Deps{
			Events:      eventstore.New(db),
			RSVPs:       rsvpstore.New(db),
			Invitations: invitations,
			Leases:      leases,
			Audience:    resolver,
		}, logger),
		Audit: auditlog.New(audit.New(db), logger, auditlog.Config{
			Community: appCfg.AuditLogCommunity,
			Content:   appCfg.AuditLogContent,
		}),
	}
}
