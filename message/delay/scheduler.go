package delay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

const DefaultSchedulerKey = "fulfillment:delayed-messages"

const undecodableSuffix = ":undecodable"

type scheduledMessage struct {
	Topic     string            `json:"topic"`
	UUID      string            `json:"uuid"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	ReleaseAt int64             `json:"release_at"`

	member string
}

func (s scheduledMessage) message() *message.Message {
	msg := message.NewMessage(s.UUID, s.Payload)
	for k, v := range s.Metadata {
		msg.Metadata.Set(k, v)
	}
	return msg
}

// Scheduler keeps delayed messages in a Redis sorted set scored by release time.
type Scheduler struct {
	client redis.UniversalClient
	key    string
}

func NewScheduler(client redis.UniversalClient, key string) *Scheduler {
	if client == nil {
		panic("missing redis client")
	}
	if key == "" {
		key = DefaultSchedulerKey
	}

	return &Scheduler{client: client, key: key}
}

func (s *Scheduler) Schedule(ctx context.Context, topic string, msg *message.Message, releaseAt time.Time) error {
	payload, err := json.Marshal(scheduledMessage{
		Topic:     topic,
		UUID:      msg.UUID,
		Payload:   msg.Payload,
		Metadata:  msg.Metadata,
		ReleaseAt: releaseAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("could not marshal delayed message: %w", err)
	}

	err = s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(releaseAt.UnixMilli()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("could not schedule message %s: %w", msg.UUID, err)
	}

	return nil
}

func (s *Scheduler) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.key).Result()
}

func (s *Scheduler) due(ctx context.Context, now time.Time, limit int64) ([]scheduledMessage, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("could not read due messages: %w", err)
	}

	messages := make([]scheduledMessage, 0, len(members))
	for _, member := range members {
		var m scheduledMessage
		if err := json.Unmarshal([]byte(member), &m); err != nil {
			log.FromContext(ctx).WithError(err).WithField("member", member).Error("Moving undecodable delayed message aside")
			if err := s.setAside(ctx, member); err != nil {
				return nil, err
			}
			continue
		}
		m.member = member
		messages = append(messages, m)
	}

	return messages, nil
}

// UndecodableKey is the Redis list holding delayed messages that could not be decoded.
func (s *Scheduler) UndecodableKey() string {
	return s.key + undecodableSuffix
}

func (s *Scheduler) setAside(ctx context.Context, member string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.key, member)
		pipe.RPush(ctx, s.UndecodableKey(), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not set aside undecodable delayed message: %w", err)
	}
	return nil
}

// claim removes the message from the set. Only one poller gets true for a given message.
func (s *Scheduler) claim(ctx context.Context, m scheduledMessage) (bool, error) {
	removed, err := s.client.ZRem(ctx, s.key, m.member).Result()
	if err != nil {
		return false, fmt.Errorf("could not claim message %s: %w", m.UUID, err)
	}
	return removed == 1, nil
}

func (s *Scheduler) reschedule(ctx context.Context, m scheduledMessage) error {
	return s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(m.ReleaseAt),
		Member: m.member,
	}).Err()
}
