// Package notification sends the transactional emails of the order saga.
//
// Emails are submitted as SendEmail_v1 messages on the email topic. A failed
// submission is retried with the configured policy and then only logged, so it
// never affects the order itself.
package notification

import (
	"context"
	"time"

	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/metrics"
	"fulfillment/pkg/retry"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

type EmailPublisher interface {
	Publish(ctx context.Context, envelopes ...bus.Envelope) error
}

type Dispatcher struct {
	publisher        EmailPublisher
	policy           retry.Policy
	defaultRecipient string
	paymentWindow    time.Duration
}

func NewDispatcher(publisher EmailPublisher, policy retry.Policy, defaultRecipient string, paymentWindow time.Duration) Dispatcher {
	if publisher == nil {
		panic("missing publisher")
	}
	if defaultRecipient == "" {
		panic("missing default recipient")
	}

	return Dispatcher{
		publisher:        publisher,
		policy:           policy,
		defaultRecipient: defaultRecipient,
		paymentWindow:    paymentWindow,
	}
}

func (d Dispatcher) SendConfirmation(ctx context.Context, order entities.Order) {
	d.send(ctx, TemplateConfirmation, order)
}

func (d Dispatcher) SendPaymentSuccess(ctx context.Context, order entities.Order) {
	d.send(ctx, TemplatePaymentSuccess, order)
}

func (d Dispatcher) SendTimeoutCancellation(ctx context.Context, order entities.Order) {
	d.send(ctx, TemplateTimeoutCancellation, order)
}

func (d Dispatcher) send(ctx context.Context, name Template, order entities.Order) {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"order_id": order.ID,
		"template": name,
	})

	subject, body, err := render(name, newTemplateData(order, d.paymentWindow))
	if err != nil {
		metrics.Notifications.WithLabelValues(string(name), "failed").Inc()
		logger.WithError(err).Error("Could not render notification")
		return
	}

	to := order.CustomerEmail
	if to == "" {
		to = d.defaultRecipient
	}

	envelope := bus.NewEnvelope(entities.TopicEmail, entities.TagCustomEmail, entities.SendEmail_v1{
		Header:  entities.NewEventHeader(),
		To:      to,
		Subject: subject,
		Body:    body,
	})

	err = d.policy.Do(ctx, "notify "+string(name), func(ctx context.Context) error {
		return d.publisher.Publish(ctx, envelope)
	})
	if err != nil {
		metrics.Notifications.WithLabelValues(string(name), "failed").Inc()
		logger.WithError(err).Error("Could not send notification, giving up")
		return
	}

	metrics.Notifications.WithLabelValues(string(name), "submitted").Inc()
	logger.Info("Notification submitted")
}
