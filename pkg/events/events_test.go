package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/ezadmin/pkg/kafka"
	"github.com/Goden-Gun/ezadmin/pkg/permcache"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) add(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return r.err
}

func (r *recorder) ApplyRole(_ context.Context, roleID int64, perms []string) error {
	return r.add("apply-role")
}

func (r *recorder) InvalidateRole(context.Context, int64) error { return r.add("invalidate-role") }
func (r *recorder) EvictUser(context.Context, int64) error      { return r.add("evict-user") }
func (r *recorder) KillSessions(context.Context, int64) error   { return r.add("kill-sessions") }

func TestDispatch(t *testing.T) {
	cases := []struct {
		ev   Event
		want []string
	}{
		{RolePermissionsChanged(1, []string{"a"}), []string{"apply-role"}},
		{Event{Type: TypeRolePermissionsChanged, RoleID: 1}, []string{"invalidate-role"}},
		{UserRolesChanged(2), []string{"evict-user"}},
		{UserDisabled(3), []string{"evict-user", "kill-sessions"}},
	}
	for _, tc := range cases {
		t.Run(tc.ev.Type, func(t *testing.T) {
			rec := &recorder{}
			d := &Dispatcher{Cache: rec, Sessions: rec}
			require.NoError(t, d.Dispatch(context.Background(), tc.ev))
			assert.Equal(t, tc.want, rec.calls)
		})
	}

	err := (&Dispatcher{Cache: &recorder{}}).Dispatch(context.Background(), Event{Type: "nope"})
	assert.ErrorIs(t, err, errUnknownType)
}

func TestRolePermissionsChangedKeepsEmptySet(t *testing.T) {
	b, err := json.Marshal(RolePermissionsChanged(4, nil))
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(b, &ev))
	assert.NotNil(t, ev.Permissions)
	assert.Empty(t, ev.Permissions)
	assert.Equal(t, "role:4", ev.Key())
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func message(offset int64, v string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: kafka.DefaultTopic, Offset: offset, Value: []byte(v)}
}

func TestConsumeClaimMarksEveryMessage(t *testing.T) {
	rec := &recorder{}
	c := NewConsumer(&Dispatcher{Cache: rec, Sessions: rec}, "iam")

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 4)}
	claim.ch <- message(1, `{"type":"user.roles.changed","userId":7}`)
	claim.ch <- message(2, `{not json`)
	claim.ch <- message(3, `{"type":"mystery"}`)
	claim.ch <- message(4, `{"type":"user.disabled","userId":7}`)
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(sess, claim))

	assert.Equal(t, []int64{1, 2, 3, 4}, sess.marked)
	assert.Equal(t, []string{"evict-user", "evict-user", "kill-sessions"}, rec.calls)
}

func TestConsumeClaimMarksFailedMessages(t *testing.T) {
	rec := &recorder{err: errors.New("redis down")}
	c := NewConsumer(&Dispatcher{Cache: rec}, "iam")
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 1)}
	claim.ch <- message(9, `{"type":"user.roles.changed","userId":1}`)
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(sess, claim))
	assert.Equal(t, []int64{9}, sess.marked)
}

func TestConsumeClaimStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewConsumer(&Dispatcher{Cache: &recorder{}}, "iam")
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage)}
	assert.NoError(t, c.ConsumeClaim(&fakeSession{ctx: ctx}, claim))
}

func TestKafkaPublisherStampsEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "user:5" {
			return errors.New("unexpected key " + string(key))
		}
		val, _ := msg.Value.Encode()
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.ID == "" || ev.Source != "system-service" || ev.TraceID != "req-1" || ev.OccurredAt.IsZero() {
			return errors.New("event not stamped")
		}
		return nil
	})
	m := kafka.NewManagerWithProducer(kafka.Config{}, producer, nil)
	pub := NewKafkaPublisher(m, "system-service")

	ctx := tracing.WithRequestID(context.Background(), "req-1")
	require.NoError(t, pub.Publish(ctx, UserDisabled(5)))
	require.NoError(t, m.Close())
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), UserDisabled(1)))
}

type staticRoles struct{ systemapi.Client }

func TestDispatchAgainstPermissionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := permcache.NewCache(permcache.NewRedisStore(client), permcache.Options{})
	syncer := permcache.NewSynchronizer(staticRoles{}, cache)
	ctx := context.Background()

	require.NoError(t, cache.CacheRolePermissions(ctx, 1, []string{"old"}))
	require.NoError(t, cache.CacheUserPermissions(ctx, 9, []string{"old"}))
	require.NoError(t, cache.CacheUserRoles(ctx, &systemapi.UserRoles{UserID: 9, RoleIDs: []int64{1}}))

	d := &Dispatcher{Cache: syncer}
	require.NoError(t, d.Dispatch(ctx, RolePermissionsChanged(1, []string{"new"})))

	perms, found, err := cache.GetRolePermissions(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"new"}, perms)
	_, found, _ = cache.GetUserPermissions(ctx, 9)
	assert.False(t, found)

	require.NoError(t, d.Dispatch(ctx, UserRolesChanged(9)))
	assert.False(t, mr.Exists("iam:user:roles:9"))
}
