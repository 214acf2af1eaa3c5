package message

import (
	"fmt"

	"fulfillment/message/bus"
	"fulfillment/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewWatermillRouter mounts every handler of the registry. The outbox
// forwarder is added only when outboxSubscriber is set.
func NewWatermillRouter(
	outboxSubscriber message.Subscriber,
	publisher message.Publisher,
	poisonPublisher message.Publisher,
	registry *bus.Registry,
	newSubscriber bus.SubscriberConstructor,
	metricsBuilder metrics.PrometheusMetricsBuilder,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	if err := useMiddlewares(router, poisonPublisher, watermillLogger); err != nil {
		return nil, err
	}

	metricsBuilder.AddPrometheusRouterMetrics(router)

	if outboxSubscriber != nil {
		if _, err := outbox.NewForwarder(outboxSubscriber, publisher, watermillLogger, router); err != nil {
			return nil, fmt.Errorf("could not create outbox forwarder: %w", err)
		}
	}

	if err := registry.Mount(router, newSubscriber); err != nil {
		return nil, err
	}

	return router, nil
}
