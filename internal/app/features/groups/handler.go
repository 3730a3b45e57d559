// internal/app/features/groups/handler.go
package groups

import (
	groupstore "github.com/dalemusser/alumnihub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/alumnihub/internal/app/store/memberships"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// Membership changes go through the membership ledger; the group store
// is only touched directly for creation and listing.
type Handler struct {
	DB          *mongo.Database
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	Audit       *auditlog.Logger
	Log         *zap.Logger
}

// NewHandler constructs a new groups Handler. It is typically called
// from bootstrap.BuildHandler, where the stores are already built.
func NewHandler(db *mongo.Database, groups *groupstore.Store, memberships *membershipstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Groups:      groups,
		Memberships: memberships,
		Audit:       audit,
		Log:         logger,
	}
}
