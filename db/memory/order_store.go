// Package memory provides the in-memory order store and inventory ledger.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/pkg/retry"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

type EnvelopePublisher interface {
	Publish(ctx context.Context, envelopes ...bus.Envelope) error
}

// OrderStore keeps orders in memory. Messages produced by a change are
// published after the change is stored, each one with the retry policy.
type OrderStore struct {
	lock   sync.Mutex
	orders map[int64]entities.Order
	lastID int64

	publisher EnvelopePublisher
	policy    retry.Policy
}

func NewOrderStore(publisher EnvelopePublisher, policy retry.Policy) *OrderStore {
	if publisher == nil {
		panic("missing publisher")
	}

	return &OrderStore{
		orders:    map[int64]entities.Order{},
		publisher: publisher,
		policy:    policy,
	}
}

func (s *OrderStore) Add(
	ctx context.Context,
	order entities.Order,
	onAdded func(order entities.Order) []bus.Envelope,
) (entities.Order, error) {
	s.lock.Lock()
	s.lastID++
	order.ID = s.lastID
	s.orders[order.ID] = order
	s.lock.Unlock()

	s.publish(ctx, order.ID, onAdded(order))

	return order, nil
}

func (s *OrderStore) ByID(ctx context.Context, orderID int64) (entities.Order, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, fmt.Errorf("order %d: %w", orderID, entities.ErrOrderNotFound)
	}
	return order, nil
}

func (s *OrderStore) UpdateByID(
	ctx context.Context,
	orderID int64,
	updateFn func(order entities.Order) (entities.Order, []bus.Envelope, error),
) (entities.Order, error) {
	s.lock.Lock()

	order, ok := s.orders[orderID]
	if !ok {
		s.lock.Unlock()
		return entities.Order{}, fmt.Errorf("order %d: %w", orderID, entities.ErrOrderNotFound)
	}

	updated, envelopes, err := updateFn(order)
	if err != nil {
		s.lock.Unlock()
		return order, err
	}
	s.orders[orderID] = updated
	s.lock.Unlock()

	s.publish(ctx, orderID, envelopes)

	return updated, nil
}

func (s *OrderStore) publish(ctx context.Context, orderID int64, envelopes []bus.Envelope) {
	for _, envelope := range envelopes {
		err := s.policy.Do(ctx, "publish "+envelope.Tag, func(ctx context.Context) error {
			return s.publisher.Publish(ctx, envelope)
		})
		if err != nil {
			log.FromContext(ctx).
				WithError(err).
				WithField("order_id", orderID).
				WithField("topic", envelope.Topic).
				WithField("tag", envelope.Tag).
				Error("Giving up publishing message")
		}
	}
}
