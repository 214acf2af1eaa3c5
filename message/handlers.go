package message

import (
	"time"

	"fulfillment/config"
	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/message/command"
	"fulfillment/message/event"
	"fulfillment/message/sagas"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

type Handlers struct {
	Orders        *sagas.OrderFulfillment
	Commands      command.Handler
	Notifications event.Handler
}

// NewRegistry registers the listeners of the components enabled in cfg.
func NewRegistry(cfg config.Config, h Handlers) (*bus.Registry, error) {
	groups := cfg.ConsumerGroups
	registry := bus.NewRegistry()

	if cfg.Runs(config.ComponentOrders) {
		err := registry.Add(
			bus.NewHandler(
				"OrderTimeoutCheck",
				entities.TopicOrder,
				entities.TagOrderTimeoutCheck,
				groups.OrderTimeout,
				h.Orders.OnOrderTimeoutCheck,
			),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Runs(config.ComponentInventory) {
		err := registry.Add(
			bus.NewHandler(
				"DeductInventory",
				entities.TopicInventory,
				entities.TagInventoryDeduct,
				groups.InventoryDeduct,
				h.Commands.DeductInventory,
			),
			bus.NewHandler(
				"RestoreInventory",
				entities.TopicInventory,
				entities.TagOrderCancelled,
				groups.InventoryRestore,
				h.Commands.RestoreInventory,
			),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Runs(config.ComponentNotifications) {
		err := registry.Add(
			bus.NewHandler(
				"SendOrderConfirmation",
				entities.TopicOrder,
				entities.TagOrderCreated,
				groups.NotificationConfirmation,
				h.Notifications.SendOrderConfirmation,
			),
			bus.NewHandler(
				"SendPaymentSuccess",
				entities.TopicOrder,
				entities.TagOrderPaid,
				groups.NotificationPaymentSuccess,
				h.Notifications.SendPaymentSuccess,
			),
			bus.NewHandler(
				"SendTimeoutCancellation",
				entities.TopicOrder,
				entities.TagOrderTimeoutCancelled,
				groups.NotificationTimeout,
				h.Notifications.SendTimeoutCancellation,
			),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Runs(config.ComponentEmail) {
		err := registry.Add(
			bus.NewHandler(
				"SendEmail",
				entities.TopicEmail,
				entities.TagCustomEmail,
				groups.Email,
				h.Commands.SendEmail,
			).WithMiddlewares(middleware.NewThrottle(cfg.EmailRatePerSecond, time.Second).Middleware),
		)
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}
