// internal/app/features/events/handler.go
package events

import (
	"github.com/dalemusser/alumnihub/internal/app/distribution/eventfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Handler serves events, RSVPs and invitations.
type Handler struct {
	Feed  *eventfeed.Feed
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(feed *eventfeed.Feed, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Feed:  feed,
		Audit: audit,
		Log:   logger,
	}
}
