// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Community controls logging for group, topic, membership and subscription events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Community string
	// Content controls logging for post, event, invitation and RSVP events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Content string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request. chi's RealIP
// middleware has already folded proxy headers into RemoteAddr.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.SubjectID != nil {
		fields = append(fields,
			zap.String("subject_type", event.SubjectType),
			zap.String("subject_id", event.SubjectID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryCommunity:
		setting = l.config.Community
	case audit.CategoryContent:
		setting = l.config.Content
	default:
		setting = "all" // Default to logging everything for unknown categories
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) community(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, subjectType string, subjectID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryCommunity,
		EventType:   eventType,
		ActorID:     &actorID,
		SubjectType: subjectType,
		SubjectID:   &subjectID,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
		Details:     details,
	})
}

func (l *Logger) content(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, subjectType string, subjectID primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryContent,
		EventType:   eventType,
		ActorID:     &actorID,
		SubjectType: subjectType,
		SubjectID:   &subjectID,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
		Details:     details,
	})
}

// --- Community Events ---

// GroupCreated logs a new group; its creator is the first admin.
func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, actorID, groupID primitive.ObjectID, groupName string) {
	l.community(ctx, r, audit.EventGroupCreated, actorID, "group", groupID, map[string]string{
		"group_name": groupName,
	})
}

// MemberJoined logs a join, including idempotent re-joins.
func (l *Logger) MemberJoined(ctx context.Context, r *http.Request, actorID, groupID primitive.ObjectID, memberCount int64) {
	l.community(ctx, r, audit.EventMemberJoined, actorID, "group", groupID, map[string]string{
		"member_count": int64ToString(memberCount),
	})
}

// MemberLeft logs a leave.
func (l *Logger) MemberLeft(ctx context.Context, r *http.Request, actorID, groupID primitive.ObjectID, memberCount int64) {
	l.community(ctx, r, audit.EventMemberLeft, actorID, "group", groupID, map[string]string{
		"member_count": int64ToString(memberCount),
	})
}

// MemberRoleChanged logs an admin changing another member's role.
func (l *Logger) MemberRoleChanged(ctx context.Context, r *http.Request, actorID, targetUserID, groupID primitive.ObjectID, role string) {
	if l == nil {
		return
	}
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryCommunity,
		EventType:   audit.EventMemberRoleChanged,
		ActorID:     &actorID,
		UserID:      &targetUserID,
		SubjectType: "group",
		SubjectID:   &groupID,
		IP:          getClientIP(r),
		UserAgent:   userAgent(r),
		Success:     true,
		Details:     map[string]string{"role": role},
	})
}

// TopicCreated logs a new topic.
func (l *Logger) TopicCreated(ctx context.Context, r *http.Request, actorID, topicID primitive.ObjectID, topicName string) {
	l.community(ctx, r, audit.EventTopicCreated, actorID, "topic", topicID, map[string]string{
		"topic_name": topicName,
	})
}

// TopicSubscribed logs a subscription.
func (l *Logger) TopicSubscribed(ctx context.Context, r *http.Request, actorID, topicID primitive.ObjectID, subscriberCount int64) {
	l.community(ctx, r, audit.EventTopicSubscribed, actorID, "topic", topicID, map[string]string{
		"subscriber_count": int64ToString(subscriberCount),
	})
}

// TopicUnsubscribed logs an unsubscription.
func (l *Logger) TopicUnsubscribed(ctx context.Context, r *http.Request, actorID, topicID primitive.ObjectID, subscriberCount int64) {
	l.community(ctx, r, audit.EventTopicUnsubscribed, actorID, "topic", topicID, map[string]string{
		"subscriber_count": int64ToString(subscriberCount),
	})
}

// --- Content Events ---

// PostCreated logs a new post or reply.
func (l *Logger) PostCreated(ctx context.Context, r *http.Request, actorID, postID primitive.ObjectID, targetType, targetID string, isReply bool) {
	l.content(ctx, r, audit.EventPostCreated, actorID, "post", postID, map[string]string{
		"target_type": targetType,
		"target_id":   targetID,
		"is_reply":    boolToString(isReply),
	})
}

// PostUpdated logs an author edit.
func (l *Logger) PostUpdated(ctx context.Context, r *http.Request, actorID, postID primitive.ObjectID, bodyChanged bool) {
	l.content(ctx, r, audit.EventPostUpdated, actorID, "post", postID, map[string]string{
		"body_changed": boolToString(bodyChanged),
	})
}

// EventCreated logs a new event.
func (l *Logger) EventCreated(ctx context.Context, r *http.Request, actorID, eventID primitive.ObjectID, title string, private bool) {
	l.content(ctx, r, audit.EventEventCreated, actorID, "event", eventID, map[string]string{
		"title":      title,
		"is_private": boolToString(private),
	})
}

// InvitationCreated logs an invitation (new or reactivated).
func (l *Logger) InvitationCreated(ctx context.Context, r *http.Request, actorID, eventID primitive.ObjectID, inviteeKind, inviteeID string) {
	l.content(ctx, r, audit.EventInvitationCreated, actorID, "event", eventID, map[string]string{
		"invitee_kind": inviteeKind,
		"invitee_id":   inviteeID,
	})
}

// InvitationRevoked logs a revocation.
func (l *Logger) InvitationRevoked(ctx context.Context, r *http.Request, actorID, eventID primitive.ObjectID, inviteeKind, inviteeID string) {
	l.content(ctx, r, audit.EventInvitationRevoked, actorID, "event", eventID, map[string]string{
		"invitee_kind": inviteeKind,
		"invitee_id":   inviteeID,
	})
}

// RSVPRecorded logs an accepted RSVP. Rejections are not audited; they
// surface to the caller as errors.
func (l *Logger) RSVPRecorded(ctx context.Context, r *http.Request, actorID, eventID primitive.ObjectID, status string, attendeeCount int64) {
	l.content(ctx, r, audit.EventRSVPRecorded, actorID, "event", eventID, map[string]string{
		"status":         status,
		"attendee_count": int64ToString(attendeeCount),
	})
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func int64ToString(i int64) string {
	return strconv.FormatInt(i, 10)
}
