// internal/app/features/posts/handler.go
package posts

import (
	"github.com/dalemusser/alumnihub/internal/app/distribution/postfeed"
	"github.com/dalemusser/alumnihub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// Handler serves the post feed. Audience checks live in postfeed; the
// handlers only translate HTTP to feed calls and back.
type Handler struct {
	Feed  *postfeed.Feed
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(feed *postfeed.Feed, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Feed:  feed,
		Audit: audit,
		Log:   logger,
	}
}
