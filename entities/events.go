package entities

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicOrder     = "order-topic"
	TopicInventory = "inventory-topic"
	TopicEmail     = "email-topic"

	TagOrderCreated          = "ORDER_CREATED"
	TagOrderTimeoutCheck     = "ORDER_TIMEOUT_CHECK"
	TagOrderPaid             = "ORDER_PAID"
	TagOrderTimeoutCancelled = "ORDER_TIMEOUT_CANCELLED"
	TagInventoryDeduct       = "INVENTORY_DEDUCT"
	TagOrderCancelled        = "ORDER_CANCELLED"
	TagCustomEmail           = "CUSTOM_EMAIL"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return NewEventHeaderWithIdempotencyKey(uuid.NewString())
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type OrderCreated_v1 struct {
	Header EventHeader `json:"header"`
	Order  Order       `json:"order"`
}

// OrderTimeoutCheck_v1 is published with a delay and carries the order as it was at creation.
type OrderTimeoutCheck_v1 struct {
	Header EventHeader `json:"header"`
	Order  Order       `json:"order"`
}

type OrderPaid_v1 struct {
	Header EventHeader `json:"header"`
	Order  Order       `json:"order"`
}

type OrderTimeoutCancelled_v1 struct {
	Header EventHeader `json:"header"`
	Order  Order       `json:"order"`
}

type CancellationReason string

const (
	CancellationReasonUser    CancellationReason = "user"
	CancellationReasonTimeout CancellationReason = "timeout"
)

// OrderCancelled_v1 is the restore command consumed by the inventory participant.
type OrderCancelled_v1 struct {
	Header EventHeader `json:"header"`

	OrderID   int64              `json:"order_id"`
	ProductID int64              `json:"product_id"`
	Quantity  int                `json:"quantity"`
	EventTime time.Time          `json:"event_time"`
	Reason    CancellationReason `json:"reason"`
}

func (e OrderCancelled_v1) StockChange() StockChange {
	return StockChange{OrderID: e.OrderID, ProductID: e.ProductID, Quantity: e.Quantity}
}
