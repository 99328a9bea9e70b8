package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserCreated       = "user.created"
	EventTypePasswordChanged   = "user.password_changed"
	EventTypePermissionChanged = "user.permission_changed"
	EventTypeUserDeleted       = "user.deleted"
)

// UserEventTypes lists every event the admin operations emit.
var UserEventTypes = []string{
	EventTypeUserCreated,
	EventTypePasswordChanged,
	EventTypePermissionChanged,
	EventTypeUserDeleted,
}

// UserEvent describes an admin mutation that the backend accepted.
type UserEvent struct {
	BaseEvent
	ActorID      int64  `json:"actor_id"`
	TargetUserID int64  `json:"target_user_id"`
	Username     string `json:"username,omitempty"`
	Permission   string `json:"permission,omitempty"`
}

func newUserEvent(eventType string, actorID, targetID int64, data map[string]interface{}) *UserEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["actor_id"] = actorID
	data["target_user_id"] = targetID
	return &UserEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		ActorID:      actorID,
		TargetUserID: targetID,
	}
}

func NewUserCreatedEvent(actorID, userID int64, username, permission string) *UserEvent {
	e := newUserEvent(EventTypeUserCreated, actorID, userID, map[string]interface{}{
		"username":   username,
		"permission": permission,
	})
	e.Username = username
	e.Permission = permission
	return e
}

func NewPasswordChangedEvent(actorID, userID int64) *UserEvent {
	return newUserEvent(EventTypePasswordChanged, actorID, userID, nil)
}

func NewPermissionChangedEvent(actorID, userID int64, permission string) *UserEvent {
	e := newUserEvent(EventTypePermissionChanged, actorID, userID, map[string]interface{}{
		"permission": permission,
	})
	e.Permission = permission
	return e
}

func NewUserDeletedEvent(actorID, userID int64, username string) *UserEvent {
	e := newUserEvent(EventTypeUserDeleted, actorID, userID, map[string]interface{}{
		"username": username,
	})
	e.Username = username
	return e
}

// AuditLogHandler writes every user event as a structured log line.
func AuditLogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
		}
		if data, ok := event.Payload().(map[string]interface{}); ok {
			for k, v := range data {
				attrs = append(attrs, k, v)
			}
		}
		logger.InfoContext(ctx, "audit", attrs...)
		return nil
	}
}

// SubscribeAuditLog attaches AuditLogHandler to every user event type.
func SubscribeAuditLog(bus *EventBus, logger *slog.Logger) {
	h := AuditLogHandler(logger)
	for _, t := range UserEventTypes {
		bus.Subscribe(t, h)
	}
}
