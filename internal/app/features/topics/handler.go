// internal/app/features/topics/handler.go
package topics

import (
	subscriptionstore "github.com/dalemusser/alumnihub/internal/app/store/subscriptions"
	topicstore "github.com/dalemusser/alumnihub/internal/app/store/topics"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Handler serves topic creation and the subscription ledger.
type Handler struct {
	Topics        *topicstore.Store
	Subscriptions *subscriptionstore.Store
	Audit         *auditlog.Logger
	Log           *zap.Logger
}

func NewHandler(topics *topicstore.Store, subs *subscriptionstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Topics:        topics,
		Subscriptions: subs,
		Audit:         audit,
		Log:           logger,
	}
}
