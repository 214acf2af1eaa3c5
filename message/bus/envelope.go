// Package bus publishes and subscribes to tagged messages on top of watermill.
//
// Every message travels on a topic and carries a tag in its metadata. Several
// listeners may share a topic; each one selects the tags it wants and acks the
// rest. Listeners in the same consumer group compete for messages, different
// groups each get their own copy.
package bus

import (
	"context"
	"fmt"
	"strconv"

	"fulfillment/message/delay"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

const TagMetadataKey = "tag"

var marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

type Envelope struct {
	Topic   string
	Tag     string
	Payload any
	// DelayTier > 0 asks the broker to hold the message for that tier before delivery.
	DelayTier int
}

func NewEnvelope(topic, tag string, payload any) Envelope {
	return Envelope{
		Topic:   topic,
		Tag:     tag,
		Payload: payload,
	}
}

func (e Envelope) Delayed(tier int) Envelope {
	e.DelayTier = tier
	return e
}

type Publisher struct {
	publisher message.Publisher
}

func NewPublisher(publisher message.Publisher) Publisher {
	if publisher == nil {
		panic("missing publisher")
	}

	return Publisher{publisher: publisher}
}

func (p Publisher) Publish(ctx context.Context, envelopes ...Envelope) error {
	for _, envelope := range envelopes {
		msg, err := marshaler.Marshal(envelope.Payload)
		if err != nil {
			return fmt.Errorf("could not marshal %T: %w", envelope.Payload, err)
		}

		msg.Metadata.Set(TagMetadataKey, envelope.Tag)
		if envelope.DelayTier > 0 {
			msg.Metadata.Set(delay.TierMetadataKey, strconv.Itoa(envelope.DelayTier))
		}
		msg.SetContext(ctx)

		if err := p.publisher.Publish(envelope.Topic, msg); err != nil {
			return fmt.Errorf("could not publish %s to %s: %w", envelope.Tag, envelope.Topic, err)
		}
	}

	return nil
}
