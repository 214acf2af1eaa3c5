package delay

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher sends messages carrying a delay tier to the Scheduler and
// everything else straight to the next publisher.
type Publisher struct {
	next      message.Publisher
	scheduler *Scheduler
	tiers     Tiers
	now       func() time.Time
}

func NewPublisher(next message.Publisher, scheduler *Scheduler, tiers Tiers) *Publisher {
	if next == nil {
		panic("missing next publisher")
	}
	if scheduler == nil {
		panic("missing scheduler")
	}
	if len(tiers) == 0 {
		panic("missing delay tiers")
	}

	return &Publisher{
		next:      next,
		scheduler: scheduler,
		tiers:     tiers,
		now:       time.Now,
	}
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	immediate := make([]*message.Message, 0, len(messages))

	for _, msg := range messages {
		tierValue := msg.Metadata.Get(TierMetadataKey)
		if tierValue == "" {
			immediate = append(immediate, msg)
			continue
		}

		tier, err := strconv.Atoi(tierValue)
		if err != nil {
			return fmt.Errorf("invalid delay tier %q on message %s: %w", tierValue, msg.UUID, err)
		}
		wait, err := p.tiers.Duration(tier)
		if err != nil {
			return fmt.Errorf("message %s: %w", msg.UUID, err)
		}

		delete(msg.Metadata, TierMetadataKey)

		releaseAt := p.now().Add(wait)
		if err := p.scheduler.Schedule(msg.Context(), topic, msg, releaseAt); err != nil {
			return err
		}

		log.FromContext(msg.Context()).
			WithField("message_id", msg.UUID).
			WithField("topic", topic).
			WithField("delay_tier", tier).
			WithField("release_at", releaseAt).
			Debug("Scheduled delayed message")
	}

	if len(immediate) == 0 {
		return nil
	}

	return p.next.Publish(topic, immediate...)
}

func (p *Publisher) Close() error {
	return p.next.Close()
}
