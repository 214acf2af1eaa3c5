package delay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers(DefaultTiers)
	require.NoError(t, err)
	require.Len(t, tiers, 18)

	fifth, err := tiers.Duration(5)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, fifth)

	_, err = tiers.Duration(0)
	assert.Error(t, err)
	_, err = tiers.Duration(19)
	assert.Error(t, err)

	_, err = ParseTiers("")
	assert.Error(t, err)
	_, err = ParseTiers("1s soon")
	assert.Error(t, err)
	_, err = ParseTiers("1s -5s")
	assert.Error(t, err)
}

func TestDelayedPublishing(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	scheduler := newTestScheduler(t)
	next := &recordingPublisher{}

	publisher := NewPublisher(next, scheduler, MustParseTiers("1s 5s 10s"))
	publisher.now = clock.Now

	forwarder := NewForwarder(scheduler, next, time.Millisecond)
	forwarder.now = clock.Now

	delayed := message.NewMessage("delayed-1", []byte(`{"order_id":1}`))
	delayed.Metadata.Set(TierMetadataKey, "2")
	delayed.Metadata.Set("tag", "ORDER_TIMEOUT_CHECK")

	immediate := message.NewMessage("immediate-1", []byte(`{}`))

	require.NoError(t, publisher.Publish("order-topic", delayed, immediate))

	assert.Equal(t, []string{"immediate-1"}, next.UUIDs("order-topic"))

	pending, err := scheduler.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	clock.Advance(4 * time.Second)
	forwarded, err := forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, forwarded, "message released before its tier elapsed")

	clock.Advance(time.Second)
	forwarded, err = forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)

	released := next.Messages("order-topic")
	require.Len(t, released, 2)
	assert.Equal(t, "delayed-1", released[1].UUID)
	assert.Equal(t, "ORDER_TIMEOUT_CHECK", released[1].Metadata.Get("tag"))
	assert.Empty(t, released[1].Metadata.Get(TierMetadataKey))
	assert.JSONEq(t, `{"order_id":1}`, string(released[1].Payload))

	forwarded, err = forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, forwarded, "message released twice")
}

func TestDelayedPublishing_invalid_tier(t *testing.T) {
	publisher := NewPublisher(&recordingPublisher{}, newTestScheduler(t), MustParseTiers("1s"))

	msg := message.NewMessage("m", nil)
	msg.Metadata.Set(TierMetadataKey, "7")
	assert.Error(t, publisher.Publish("topic", msg))

	msg = message.NewMessage("m", nil)
	msg.Metadata.Set(TierMetadataKey, "soon")
	assert.Error(t, publisher.Publish("topic", msg))
}

func TestForwarder_reschedules_on_publish_failure(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}

	scheduler := newTestScheduler(t)
	next := &recordingPublisher{fail: true}

	forwarder := NewForwarder(scheduler, next, time.Millisecond)
	forwarder.now = clock.Now

	require.NoError(t, scheduler.Schedule(ctx, "topic", message.NewMessage("m", []byte("x")), clock.Now()))

	forwarded, err := forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, forwarded)

	pending, err := scheduler.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	next.setFail(false)
	forwarded, err = forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, []string{"m"}, next.UUIDs("topic"))
}

func TestForwarder_sets_aside_undecodable_messages(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}

	scheduler := newTestScheduler(t)
	next := &recordingPublisher{}

	forwarder := NewForwarder(scheduler, next, time.Millisecond)
	forwarder.now = clock.Now

	err := scheduler.client.ZAdd(ctx, scheduler.key, redis.Z{
		Score:  float64(clock.Now().Add(-time.Minute).UnixMilli()),
		Member: "not-json",
	}).Err()
	require.NoError(t, err)
	require.NoError(t, scheduler.Schedule(ctx, "order-topic", message.NewMessage("timeout-check", nil), clock.Now()))

	forwarded, err := forwarder.ForwardDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, []string{"timeout-check"}, next.UUIDs("order-topic"))

	pending, err := scheduler.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)

	undecodable, err := scheduler.client.LRange(ctx, scheduler.UndecodableKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"not-json"}, undecodable)
}

func TestForwarder_Run(t *testing.T) {
	scheduler := newTestScheduler(t)
	next := &recordingPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder := NewForwarder(scheduler, next, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- forwarder.Run(ctx)
	}()

	require.NoError(t, scheduler.Schedule(ctx, "topic", message.NewMessage("m", nil), time.Now().Add(50*time.Millisecond)))

	assert.EventuallyWithT(t, func(t *assert.CollectT) {
		assert.Equal(t, []string{"m"}, next.UUIDs("topic"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewScheduler(client, "")
}

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	lock     sync.Mutex
	fail     bool
	messages map[string][]*message.Message
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.fail {
		return assert.AnError
	}
	if p.messages == nil {
		p.messages = map[string][]*message.Message{}
	}
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) setFail(fail bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.fail = fail
}

func (p *recordingPublisher) Messages(topic string) []*message.Message {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]*message.Message(nil), p.messages[topic]...)
}

func (p *recordingPublisher) UUIDs(topic string) []string {
	var uuids []string
	for _, msg := range p.Messages(topic) {
		uuids = append(uuids, msg.UUID)
	}
	return uuids
}
