package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Goden-Gun/ezadmin/pkg/kafka"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
)

// CacheInvalidator is the permission-cache side of the consumer.
type CacheInvalidator interface {
	ApplyRole(ctx context.Context, roleID int64, perms []string) error
	InvalidateRole(ctx context.Context, roleID int64) error
	EvictUser(ctx context.Context, userID int64) error
}

// SessionKiller terminates every session of a user.
type SessionKiller interface {
	KillSessions(ctx context.Context, userID int64) error
}

var errUnknownType = errors.New("unknown event type")

// Dispatcher applies events to the local cache and session state.
type Dispatcher struct {
	Cache    CacheInvalidator
	Sessions SessionKiller
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Type {
	case TypeRolePermissionsChanged:
		if ev.Permissions == nil {
			return d.Cache.InvalidateRole(ctx, ev.RoleID)
		}
		return d.Cache.ApplyRole(ctx, ev.RoleID, ev.Permissions)
	case TypeUserRolesChanged:
		return d.Cache.EvictUser(ctx, ev.UserID)
	case TypeUserDisabled:
		if err := d.Cache.EvictUser(ctx, ev.UserID); err != nil {
			return err
		}
		if d.Sessions == nil {
			return nil
		}
		return d.Sessions.KillSessions(ctx, ev.UserID)
	default:
		return fmt.Errorf("%w: %q", errUnknownType, ev.Type)
	}
}

// Consumer implements sarama.ConsumerGroupHandler. Every message is marked,
// including malformed ones and ones whose handling failed, so a bad
// message never blocks its partition.
type Consumer struct {
	dispatcher *Dispatcher
	group      string
}

func NewConsumer(d *Dispatcher, group string) *Consumer {
	return &Consumer{dispatcher: d, group: group}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handle(sess.Context(), msg)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	ctx = kafka.ExtractHeaders(ctx, msg.Headers)
	entry := log.WithTrace(ctx).WithFields(log.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"group":     c.group,
	})

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Type == "" {
		entry.WithError(err).Warn("events: malformed message skipped")
		return
	}
	start := time.Now()
	entry = entry.WithFields(log.Fields{"event_id": ev.ID, "type": ev.Type})
	if err := c.dispatcher.Dispatch(ctx, ev); err != nil {
		if errors.Is(err, errUnknownType) {
			entry.WithError(err).Warn("events: unknown event skipped")
			return
		}
		entry.WithError(err).WithField(log.FieldAlert, true).Error("events: apply event failed")
		return
	}
	entry.WithField("duration", time.Since(start).String()).Info("events: applied")
}

// Run consumes topic until ctx is canceled.
func (c *Consumer) Run(ctx context.Context, group sarama.ConsumerGroup, topic string) {
	go func() {
		for err := range group.Errors() {
			log.WithError(err).WithField("group", c.group).Warn("events: consumer group error")
		}
	}()
	for {
		if err := group.Consume(ctx, []string{topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			log.WithError(err).WithField("group", c.group).Error("events: consume failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
