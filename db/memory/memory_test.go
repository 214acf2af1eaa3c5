package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fulfillment/db/memory"
	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLedger_never_negative(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewInventoryLedger(entities.InventoryRecord{ProductID: 1001, Quantity: 50})

	var (
		wg      sync.WaitGroup
		lock    sync.Mutex
		applied int
	)
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()

			outcome, err := ledger.Deduct(ctx, entities.StockChange{OrderID: orderID, ProductID: 1001, Quantity: 3})
			assert.NoError(t, err)

			if outcome.Applied() {
				lock.Lock()
				applied++
				lock.Unlock()
			} else {
				assert.Equal(t, entities.StockInsufficient, outcome)
			}
		}(int64(i))
	}
	wg.Wait()

	record, err := ledger.Get(ctx, 1001)
	require.NoError(t, err)

	assert.Equal(t, 16, applied)
	assert.Equal(t, 2, record.Quantity)
}

func TestInventoryLedger_dedup(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewInventoryLedger(entities.InventoryRecord{ProductID: 1001, Quantity: 50})

	change := entities.StockChange{OrderID: 7, ProductID: 1001, Quantity: 5}

	outcome, err := ledger.Restore(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, entities.StockNotDeducted, outcome, "restore before deduct must not add stock")
	assertQuantity(t, ledger, 1001, 50)

	outcome, err = ledger.Deduct(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, entities.StockApplied, outcome)

	outcome, err = ledger.Deduct(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, entities.StockDuplicate, outcome)
	assertQuantity(t, ledger, 1001, 45)

	outcome, err = ledger.Restore(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, entities.StockApplied, outcome)

	outcome, err = ledger.Restore(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, entities.StockDuplicate, outcome)
	assertQuantity(t, ledger, 1001, 50)
}

func TestInventoryLedger_without_order(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewInventoryLedger(entities.InventoryRecord{ProductID: 1, Quantity: 3})

	outcome, err := ledger.Deduct(ctx, entities.StockChange{ProductID: 1, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, entities.StockInsufficient, outcome)
	assertQuantity(t, ledger, 1, 3)

	outcome, err = ledger.Deduct(ctx, entities.StockChange{ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, entities.StockProductNotFound, outcome)

	outcome, err = ledger.Restore(ctx, entities.StockChange{ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, entities.StockProductNotFound, outcome)

	outcome, err = ledger.Restore(ctx, entities.StockChange{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, entities.StockApplied, outcome)
	assertQuantity(t, ledger, 1, 5)

	_, err = ledger.Get(ctx, 2)
	assert.ErrorIs(t, err, entities.ErrProductNotFound)

	require.NoError(t, ledger.Save(ctx, entities.InventoryRecord{ProductID: 2, Quantity: 10, Price: decimal.NewFromInt(3)}))
	assert.Error(t, ledger.Save(ctx, entities.InventoryRecord{ProductID: 3, Quantity: -1}))

	all, err := ledger.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.EqualValues(t, 1, all[0].ProductID)
	assert.EqualValues(t, 2, all[1].ProductID)
}

func TestOrderStore(t *testing.T) {
	ctx := context.Background()
	publisher := &envelopeRecorder{}
	store := memory.NewOrderStore(publisher, retry.Linear(3, time.Millisecond))

	order, err := entities.NewOrder("O-1", 1001, 5, decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)

	added, err := store.Add(ctx, order, func(order entities.Order) []bus.Envelope {
		return []bus.Envelope{bus.NewEnvelope("topic", "CREATED", order.ID)}
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, added.ID)
	assert.Equal(t, []string{"CREATED"}, publisher.Tags())

	second, err := store.Add(ctx, order, func(order entities.Order) []bus.Envelope { return nil })
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.ID)

	updated, err := store.UpdateByID(ctx, added.ID, func(order entities.Order) (entities.Order, []bus.Envelope, error) {
		order.Status = entities.OrderStatusConfirmed
		return order, []bus.Envelope{bus.NewEnvelope("topic", "CONFIRMED", order.ID)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusConfirmed, updated.Status)
	assert.Equal(t, []string{"CREATED", "CONFIRMED"}, publisher.Tags())

	_, err = store.UpdateByID(ctx, added.ID, func(order entities.Order) (entities.Order, []bus.Envelope, error) {
		order.Status = entities.OrderStatusCancelled
		return order, []bus.Envelope{bus.NewEnvelope("topic", "CANCELLED", order.ID)}, entities.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)

	stored, err := store.ByID(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusConfirmed, stored.Status, "failed update must not be stored")
	assert.Equal(t, []string{"CREATED", "CONFIRMED"}, publisher.Tags())

	_, err = store.ByID(ctx, 99)
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)

	_, err = store.UpdateByID(ctx, 99, func(order entities.Order) (entities.Order, []bus.Envelope, error) {
		t.Fatal("update function called for missing order")
		return order, nil, nil
	})
	assert.ErrorIs(t, err, entities.ErrOrderNotFound)
}

func TestOrderStore_publish_failure_is_retried_then_dropped(t *testing.T) {
	ctx := context.Background()
	publisher := &envelopeRecorder{failures: 100}
	store := memory.NewOrderStore(publisher, retry.Linear(3, time.Millisecond))

	order, err := entities.NewOrder("O-1", 1001, 5, decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)

	added, err := store.Add(ctx, order, func(order entities.Order) []bus.Envelope {
		return []bus.Envelope{bus.NewEnvelope("topic", "CREATED", order.ID)}
	})
	require.NoError(t, err, "publishing failure must not fail the stored change")
	assert.Equal(t, 3, publisher.Attempts())

	_, err = store.ByID(ctx, added.ID)
	assert.NoError(t, err)
}

func assertQuantity(t *testing.T, ledger *memory.InventoryLedger, productID int64, expected int) {
	t.Helper()

	record, err := ledger.Get(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, expected, record.Quantity)
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

func (r *envelopeRecorder) Tags() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	var tags []string
	for _, e := range r.envelopes {
		tags = append(tags, e.Tag)
	}
	return tags
}
