package delay

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

const defaultBatchSize = 100

// Forwarder polls the Scheduler and publishes messages whose release time has passed.
type Forwarder struct {
	scheduler *Scheduler
	publisher message.Publisher
	interval  time.Duration
	batchSize int64
	now       func() time.Time
}

func NewForwarder(scheduler *Scheduler, publisher message.Publisher, interval time.Duration) *Forwarder {
	if scheduler == nil {
		panic("missing scheduler")
	}
	if publisher == nil {
		panic("missing publisher")
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	return &Forwarder{
		scheduler: scheduler,
		publisher: publisher,
		interval:  interval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := f.ForwardDue(ctx); err != nil && ctx.Err() == nil {
				log.FromContext(ctx).WithError(err).Error("Could not forward delayed messages")
			}
		}
	}
}

// ForwardDue publishes every due message once and returns how many were forwarded.
func (f *Forwarder) ForwardDue(ctx context.Context) (int, error) {
	due, err := f.scheduler.due(ctx, f.now(), f.batchSize)
	if err != nil {
		return 0, err
	}

	forwarded := 0
	for _, m := range due {
		claimed, err := f.scheduler.claim(ctx, m)
		if err != nil {
			return forwarded, err
		}
		if !claimed {
			// another poller took it
			continue
		}

		logger := log.FromContext(ctx).WithFields(logrus.Fields{
			"message_id": m.UUID,
			"topic":      m.Topic,
		})

		if err := f.publisher.Publish(m.Topic, m.message()); err != nil {
			logger.WithError(err).Warn("Could not publish delayed message, rescheduling")
			if err := f.scheduler.reschedule(ctx, m); err != nil {
				logger.WithError(err).Error("Delayed message lost, could not reschedule")
			}
			continue
		}

		logger.Debug("Released delayed message")
		forwarded++
	}

	return forwarded, nil
}
