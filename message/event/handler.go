package event

import (
	"context"

	"fulfillment/entities"
)

type Notifier interface {
	SendConfirmation(ctx context.Context, order entities.Order)
	SendPaymentSuccess(ctx context.Context, order entities.Order)
	SendTimeoutCancellation(ctx context.Context, order entities.Order)
}

type Handler struct {
	notifier Notifier
}

func NewHandler(notifier Notifier) Handler {
	if notifier == nil {
		panic("missing notifier")
	}

	return Handler{notifier: notifier}
}

func (h Handler) SendOrderConfirmation(ctx context.Context, event *entities.OrderCreated_v1) error {
	h.notifier.SendConfirmation(ctx, event.Order)
	return nil
}

func (h Handler) SendPaymentSuccess(ctx context.Context, event *entities.OrderPaid_v1) error {
	h.notifier.SendPaymentSuccess(ctx, event.Order)
	return nil
}

func (h Handler) SendTimeoutCancellation(ctx context.Context, event *entities.OrderTimeoutCancelled_v1) error {
	h.notifier.SendTimeoutCancellation(ctx, event.Order)
	return nil
}
