package message

import (
	"fmt"

	"fulfillment/message/delay"
	observability "fulfillment/trace"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewBrokerPublisher wraps the broker publisher with delayed delivery and
// publish metrics. Messages forwarded from the outbox go through it.
func NewBrokerPublisher(
	broker message.Publisher,
	scheduler *delay.Scheduler,
	tiers delay.Tiers,
	metricsBuilder metrics.PrometheusMetricsBuilder,
) (message.Publisher, error) {
	pub, err := metricsBuilder.DecoratePublisher(delay.NewPublisher(broker, scheduler, tiers))
	if err != nil {
		return nil, fmt.Errorf("could not decorate publisher with metrics: %w", err)
	}

	return pub, nil
}

// NewPublisher adds the correlation id and the trace to every published message.
func NewPublisher(brokerPublisher message.Publisher) message.Publisher {
	var pub message.Publisher = observability.TracingPublisherDecorator{Publisher: brokerPublisher}
	pub = log.CorrelationPublisherDecorator{Publisher: pub}

	return pub
}
