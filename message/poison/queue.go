// Package poison inspects and drains the poison queue filled by the router.
package poison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const Topic = "PoisonQueue"

var (
	ErrMessageNotFound = errors.New("message not found")

	errDone = errors.New("done")
)

type Message struct {
	ID      string
	Reason  string
	Topic   string
	Handler string
}

// Queue walks the poison queue by consuming each message and publishing the
// ones it keeps back to the end of the queue.
type Queue struct {
	subscriber message.Subscriber
	publisher  message.Publisher
	timeout    time.Duration
	logger     watermill.LoggerAdapter
}

func NewQueue(
	subscriber message.Subscriber,
	publisher message.Publisher,
	timeout time.Duration,
	logger watermill.LoggerAdapter,
) *Queue {
	if subscriber == nil {
		panic("missing subscriber")
	}
	if publisher == nil {
		panic("missing publisher")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Queue{
		subscriber: subscriber,
		publisher:  publisher,
		timeout:    timeout,
		logger:     logger,
	}
}

func (q *Queue) Preview(ctx context.Context) ([]Message, error) {
	var messages []Message

	err := q.walk(ctx, "preview", func(msg *message.Message) (bool, bool, error) {
		messages = append(messages, Message{
			ID:      msg.UUID,
			Reason:  msg.Metadata.Get(middleware.ReasonForPoisonedKey),
			Topic:   msg.Metadata.Get(middleware.PoisonedTopicKey),
			Handler: msg.Metadata.Get(middleware.PoisonedHandlerKey),
		})
		return true, false, nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (q *Queue) Remove(ctx context.Context, messageID string) error {
	found := false

	err := q.walk(ctx, "remove", func(msg *message.Message) (bool, bool, error) {
		if msg.UUID != messageID {
			return true, false, nil
		}

		found = true
		return false, true, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", messageID, ErrMessageNotFound)
	}

	return nil
}

// Requeue publishes the message back to the topic it was poisoned on and removes it from the queue.
func (q *Queue) Requeue(ctx context.Context, messageID string) error {
	found := false

	err := q.walk(ctx, "requeue", func(msg *message.Message) (bool, bool, error) {
		if msg.UUID != messageID {
			return true, false, nil
		}

		topic := msg.Metadata.Get(middleware.PoisonedTopicKey)
		if topic == "" {
			return true, true, fmt.Errorf("message %s has no original topic", msg.UUID)
		}

		requeued := msg.Copy()
		for _, key := range []string{
			middleware.ReasonForPoisonedKey,
			middleware.PoisonedTopicKey,
			middleware.PoisonedHandlerKey,
			middleware.PoisonedSubscriberKey,
		} {
			delete(requeued.Metadata, key)
		}

		if err := q.publisher.Publish(topic, requeued); err != nil {
			return true, true, fmt.Errorf("could not requeue message %s to %s: %w", msg.UUID, topic, err)
		}

		found = true
		return false, true, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", messageID, ErrMessageNotFound)
	}

	return nil
}

// walk passes each queued message to visit once, stopping when the first
// message comes around again, when visit asks to stop, or on timeout.
func (q *Queue) walk(
	ctx context.Context,
	name string,
	visit func(msg *message.Message) (keep bool, stop bool, err error),
) error {
	router, err := message.NewRouter(message.RouterConfig{}, q.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var (
		firstMessage string
		done         bool
		visitErr     error
	)

	router.AddHandler(
		name,
		Topic,
		q.subscriber,
		Topic,
		q.publisher,
		func(msg *message.Message) ([]*message.Message, error) {
			if done || msg.UUID == firstMessage {
				done = true
				cancel()
				return nil, errDone
			}
			if firstMessage == "" {
				firstMessage = msg.UUID
			}

			keep, stop, err := visit(msg)
			if stop {
				done = true
				visitErr = err
				cancel()
			}
			if err != nil && !stop {
				return nil, err
			}
			if !keep {
				return nil, nil
			}

			return []*message.Message{msg}, nil
		},
	)

	if err := router.Run(ctx); err != nil {
		return err
	}

	return visitErr
}
