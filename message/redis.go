package message

import (
	"fmt"

	"fulfillment/message/bus"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

func NewRedisPublisher(rdb redis.UniversalClient, watermillLogger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create redis publisher: %w", err)
	}

	return pub, nil
}

// NewRedisSubscriberConstructor returns a constructor creating one subscriber
// per consumer group. Subscribers of the same group share the stream messages.
func NewRedisSubscriberConstructor(rdb redis.UniversalClient, watermillLogger watermill.LoggerAdapter) bus.SubscriberConstructor {
	return func(consumerGroup string) (message.Subscriber, error) {
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rdb,
			ConsumerGroup: consumerGroup,
		}, watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("could not create redis subscriber for %s: %w", consumerGroup, err)
		}

		return sub, nil
	}
}
