// Package events carries authorization change notifications from
// system-service to every iam-service replica over Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Goden-Gun/ezadmin/pkg/kafka"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

// Event types.
const (
	TypeRolePermissionsChanged = "role.permissions.changed"
	TypeUserRolesChanged       = "user.roles.changed"
	TypeUserDisabled           = "user.disabled"
)

// Event is the JSON payload of one change notification.
type Event struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	RoleID int64  `json:"roleId,omitempty"`
	UserID int64  `json:"userId,omitempty"`
	// Permissions is the role's full permission set after the change.
	Permissions []string  `json:"permissions"`
	OccurredAt  time.Time `json:"occurredAt"`
	TraceID     string    `json:"traceId,omitempty"`
	Source      string    `json:"source,omitempty"`
}

func RolePermissionsChanged(roleID int64, perms []string) Event {
	if perms == nil {
		perms = []string{}
	}
	return Event{Type: TypeRolePermissionsChanged, RoleID: roleID, Permissions: perms}
}

func UserRolesChanged(userID int64) Event {
	return Event{Type: TypeUserRolesChanged, UserID: userID}
}

func UserDisabled(userID int64) Event {
	return Event{Type: TypeUserDisabled, UserID: userID}
}

// Key partitions events by subject so one subject's events stay ordered.
func (e Event) Key() string {
	if e.RoleID != 0 {
		return "role:" + strconv.FormatInt(e.RoleID, 10)
	}
	return "user:" + strconv.FormatInt(e.UserID, 10)
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev Event) error {
	log.WithTrace(ctx).WithField("type", ev.Type).Debug("events: kafka disabled, event dropped")
	return nil
}

// KafkaPublisher publishes JSON events through the shared kafka.Manager.
type KafkaPublisher struct {
	manager *kafka.Manager
	source  string
}

func NewKafkaPublisher(m *kafka.Manager, source string) *KafkaPublisher {
	return &KafkaPublisher{manager: m, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	stamp(ctx, &ev, p.source)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.manager.Publish(ctx, "", []byte(ev.Key()), body); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func stamp(ctx context.Context, ev *Event, source string) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.TraceID == "" {
		ev.TraceID = tracing.RequestIDFrom(ctx)
	}
	if ev.Source == "" {
		ev.Source = source
	}
}
