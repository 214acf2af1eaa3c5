package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/notification"
	"fulfillment/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_templates(t *testing.T) {
	order := entities.Order{
		ID:        1,
		OrderNo:   "O-1",
		ProductID: 1001,
		Quantity:  5,
		Price:     decimal.RequireFromString("10.00"),
	}

	testCases := []struct {
		Name     string
		Send     func(d notification.Dispatcher)
		Subject  string
		Contains []string
	}{
		{
			Name:     "confirmation",
			Send:     func(d notification.Dispatcher) { d.SendConfirmation(context.Background(), order) },
			Subject:  "Order confirmation - O-1",
			Contains: []string{"within 1m0s", "Order number: O-1", "Product: 1001", "Quantity: 5", "Unit price: 10.00", "Total: 50.00"},
		},
		{
			Name:     "payment_success",
			Send:     func(d notification.Dispatcher) { d.SendPaymentSuccess(context.Background(), order) },
			Subject:  "Payment success - O-1",
			Contains: []string{"received your payment", "Total: 50.00"},
		},
		{
			Name:     "timeout_cancellation",
			Send:     func(d notification.Dispatcher) { d.SendTimeoutCancellation(context.Background(), order) },
			Subject:  "Order timeout cancellation - O-1",
			Contains: []string{"has been cancelled", "Total: 50.00"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			publisher := &envelopeRecorder{}
			dispatcher := notification.NewDispatcher(publisher, retry.Linear(3, time.Millisecond), "default@example.com", time.Minute)

			tc.Send(dispatcher)

			envelopes := publisher.Envelopes()
			require.Len(t, envelopes, 1)
			assert.Equal(t, entities.TopicEmail, envelopes[0].Topic)
			assert.Equal(t, entities.TagCustomEmail, envelopes[0].Tag)

			email := envelopes[0].Payload.(entities.SendEmail_v1)
			assert.Equal(t, "default@example.com", email.To)
			assert.Equal(t, tc.Subject, email.Subject)
			for _, expected := range tc.Contains {
				assert.Contains(t, email.Body, expected)
			}
		})
	}
}

func TestDispatcher_customer_email(t *testing.T) {
	publisher := &envelopeRecorder{}
	dispatcher := notification.NewDispatcher(publisher, retry.Linear(3, time.Millisecond), "default@example.com", time.Minute)

	dispatcher.SendPaymentSuccess(context.Background(), entities.Order{OrderNo: "O-2", CustomerEmail: "buyer@example.com"})

	envelopes := publisher.Envelopes()
	require.Len(t, envelopes, 1)
	assert.Equal(t, "buyer@example.com", envelopes[0].Payload.(entities.SendEmail_v1).To)
}

func TestDispatcher_failures_are_retried_and_swallowed(t *testing.T) {
	publisher := &envelopeRecorder{failures: 2}
	dispatcher := notification.NewDispatcher(publisher, retry.Linear(3, time.Millisecond), "default@example.com", time.Minute)

	dispatcher.SendConfirmation(context.Background(), entities.Order{OrderNo: "O-1"})
	assert.Equal(t, 3, publisher.Attempts())
	assert.Len(t, publisher.Envelopes(), 1)

	publisher = &envelopeRecorder{failures: 100}
	dispatcher = notification.NewDispatcher(publisher, retry.Linear(3, time.Millisecond), "default@example.com", time.Minute)

	assert.NotPanics(t, func() {
		dispatcher.SendConfirmation(context.Background(), entities.Order{OrderNo: "O-1"})
	})
	assert.Equal(t, 3, publisher.Attempts())
	assert.Empty(t, publisher.Envelopes())
}

type envelopeRecorder struct {
	lock      sync.Mutex
	failures  int
	attempts  int
	envelopes []bus.Envelope
}

func (r *envelopeRecorder) Publish(ctx context.Context, envelopes ...bus.Envelope) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.attempts++
	if r.failures > 0 {
		r.failures--
		return assert.AnError
	}
	r.envelopes = append(r.envelopes, envelopes...)
	return nil
}

func (r *envelopeRecorder) Attempts() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.attempts
}

func (r *envelopeRecorder) Envelopes() []bus.Envelope {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]bus.Envelope(nil), r.envelopes...)
}
