package sagas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/metrics"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

// OrderRepository stores orders. Envelopes returned together with a change are
// published only if the change is stored.
type OrderRepository interface {
	Add(ctx context.Context, order entities.Order, onAdded func(order entities.Order) []bus.Envelope) (entities.Order, error)
	ByID(ctx context.Context, orderID int64) (entities.Order, error)
	UpdateByID(
		ctx context.Context,
		orderID int64,
		updateFn func(order entities.Order) (entities.Order, []bus.Envelope, error),
	) (entities.Order, error)
}

// OrderFulfillment drives an order from PENDING to CONFIRMED or CANCELLED.
//
// Payment and the delayed timeout check may race. Both go through
// OrderRepository.UpdateByID, so exactly one of them wins and only the winner
// emits follow-up messages.
type OrderFulfillment struct {
	repository  OrderRepository
	timeoutTier int
}

func NewOrderFulfillment(repository OrderRepository, timeoutTier int) (*OrderFulfillment, error) {
	if repository == nil {
		return nil, fmt.Errorf("repository must be set")
	}
	if timeoutTier < 1 {
		return nil, fmt.Errorf("timeout delay tier must be greater than 0")
	}

	return &OrderFulfillment{
		repository:  repository,
		timeoutTier: timeoutTier,
	}, nil
}

// CreateOrder stores a new PENDING order and schedules its timeout check.
// Stock is not touched until payment.
func (o *OrderFulfillment) CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	order, err := entities.NewOrder(order.OrderNo, order.ProductID, order.Quantity, order.Price, order.CustomerEmail)
	if err != nil {
		return entities.Order{}, err
	}

	created, err := o.repository.Add(ctx, order, func(order entities.Order) []bus.Envelope {
		return []bus.Envelope{
			bus.NewEnvelope(entities.TopicOrder, entities.TagOrderCreated, entities.OrderCreated_v1{
				Header: entities.NewEventHeader(),
				Order:  order,
			}),
			bus.NewEnvelope(entities.TopicOrder, entities.TagOrderTimeoutCheck, entities.OrderTimeoutCheck_v1{
				Header: entities.NewEventHeader(),
				Order:  order,
			}).Delayed(o.timeoutTier),
		}
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("could not create order: %w", err)
	}

	metrics.OrderTransitions.WithLabelValues(string(entities.OrderStatusPending), "create").Inc()
	orderLogger(ctx, created).Info("Order created")

	return created, nil
}

func (o *OrderFulfillment) GetOrder(ctx context.Context, orderID int64) (entities.Order, error) {
	return o.repository.ByID(ctx, orderID)
}

// PayOrder confirms a PENDING order and requests the stock deduction.
// It returns false when the order does not exist or is no longer PENDING.
func (o *OrderFulfillment) PayOrder(ctx context.Context, orderID int64) (bool, error) {
	order, err := o.repository.UpdateByID(ctx, orderID, func(order entities.Order) (entities.Order, []bus.Envelope, error) {
		if err := order.Confirm(); err != nil {
			return order, nil, err
		}

		return order, []bus.Envelope{
			bus.NewEnvelope(entities.TopicOrder, entities.TagOrderPaid, entities.OrderPaid_v1{
				Header: entities.NewEventHeader(),
				Order:  order,
			}),
			bus.NewEnvelope(entities.TopicInventory, entities.TagInventoryDeduct, entities.NewDeductInventory(order)),
		}, nil
	})
	if ok, err := rejected(ctx, orderID, "pay", err); ok || err != nil {
		return false, err
	}

	metrics.OrderTransitions.WithLabelValues(string(entities.OrderStatusConfirmed), "payment").Inc()
	orderLogger(ctx, order).Info("Order paid")

	return true, nil
}

// CancelOrder cancels a PENDING order on user request. Cancelling an already
// cancelled order succeeds without side effects, a confirmed order is rejected.
func (o *OrderFulfillment) CancelOrder(ctx context.Context, orderID int64) (bool, error) {
	_, err := o.cancel(ctx, orderID, entities.CancellationReasonUser)
	if ok, err := rejected(ctx, orderID, "cancel", err); ok || err != nil {
		return false, err
	}

	return true, nil
}

// OnOrderTimeoutCheck cancels the order if it is still PENDING when the delayed check arrives.
func (o *OrderFulfillment) OnOrderTimeoutCheck(ctx context.Context, event *entities.OrderTimeoutCheck_v1) error {
	changed, err := o.cancel(ctx, event.Order.ID, entities.CancellationReasonTimeout)
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		return entities.PermanentError{Err: err}
	case errors.Is(err, entities.ErrInvalidTransition):
		log.FromContext(ctx).WithField("order_id", event.Order.ID).Debug("Order already confirmed, timeout check ignored")
		return nil
	case err != nil:
		return err
	}

	if !changed {
		log.FromContext(ctx).WithField("order_id", event.Order.ID).Debug("Order already cancelled, timeout check ignored")
	}

	return nil
}

func (o *OrderFulfillment) cancel(ctx context.Context, orderID int64, reason entities.CancellationReason) (bool, error) {
	var changed bool

	order, err := o.repository.UpdateByID(ctx, orderID, func(order entities.Order) (entities.Order, []bus.Envelope, error) {
		var err error
		changed, err = order.Cancel()
		if err != nil || !changed {
			return order, nil, err
		}

		envelopes := []bus.Envelope{
			bus.NewEnvelope(entities.TopicInventory, entities.TagOrderCancelled, entities.OrderCancelled_v1{
				Header:    entities.NewEventHeaderWithIdempotencyKey(fmt.Sprintf("restore-%d", order.ID)),
				OrderID:   order.ID,
				ProductID: order.ProductID,
				Quantity:  order.Quantity,
				EventTime: time.Now().UTC(),
				Reason:    reason,
			}),
		}
		if reason == entities.CancellationReasonTimeout {
			envelopes = append(envelopes, bus.NewEnvelope(
				entities.TopicOrder,
				entities.TagOrderTimeoutCancelled,
				entities.OrderTimeoutCancelled_v1{
					Header: entities.NewEventHeader(),
					Order:  order,
				},
			))
		}

		return order, envelopes, nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		metrics.OrderTransitions.WithLabelValues(string(entities.OrderStatusCancelled), string(reason)).Inc()
		orderLogger(ctx, order).WithField("reason", reason).Info("Order cancelled")
	}

	return changed, nil
}

// rejected reports business rejections (unknown order, forbidden transition)
// as true and passes other errors through.
func rejected(ctx context.Context, orderID int64, operation string, err error) (bool, error) {
	if err == nil {
		return false, nil
	}

	if errors.Is(err, entities.ErrOrderNotFound) || errors.Is(err, entities.ErrInvalidTransition) {
		log.FromContext(ctx).
			WithError(err).
			WithField("order_id", orderID).
			WithField("operation", operation).
			Info("Order operation rejected")
		return true, nil
	}

	return false, fmt.Errorf("could not %s order %d: %w", operation, orderID, err)
}

func orderLogger(ctx context.Context, order entities.Order) *logrus.Entry {
	return log.FromContext(ctx).WithFields(logrus.Fields{
		"order_id":   order.ID,
		"order_no":   order.OrderNo,
		"product_id": order.ProductID,
		"quantity":   order.Quantity,
		"status":     order.Status,
	})
}
