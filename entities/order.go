package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCancelled
}

type Order struct {
	ID            int64           `json:"id" db:"order_id"`
	OrderNo       string          `json:"order_no" db:"order_no"`
	ProductID     int64           `json:"product_id" db:"product_id"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Status        OrderStatus     `json:"status" db:"status"`
	CustomerEmail string          `json:"customer_email,omitempty" db:"customer_email"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// NewOrder validates the caller supplied fields and returns a PENDING order without an id.
func NewOrder(orderNo string, productID int64, quantity int, price decimal.Decimal, customerEmail string) (Order, error) {
	var errs []error

	if strings.TrimSpace(orderNo) == "" {
		errs = append(errs, errors.New("order number must be set"))
	}
	if productID <= 0 {
		errs = append(errs, errors.New("product id must be greater than 0"))
	}
	if quantity <= 0 {
		errs = append(errs, errors.New("quantity must be greater than 0"))
	}
	if price.IsNegative() {
		errs = append(errs, errors.New("price must not be negative"))
	}
	if len(errs) > 0 {
		return Order{}, ValidationError{Err: errors.Join(errs...)}
	}

	return Order{
		OrderNo:       strings.TrimSpace(orderNo),
		ProductID:     productID,
		Quantity:      quantity,
		Price:         price,
		Status:        OrderStatusPending,
		CustomerEmail: strings.TrimSpace(customerEmail),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (o Order) Total() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// Confirm moves a PENDING order to CONFIRMED.
func (o *Order) Confirm() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot confirm order %d in status %s", ErrInvalidTransition, o.ID, o.Status)
	}

	o.Status = OrderStatusConfirmed
	return nil
}

// Cancel moves a PENDING order to CANCELLED. It reports false when the order
// was already cancelled, and fails for confirmed orders.
func (o *Order) Cancel() (bool, error) {
	switch o.Status {
	case OrderStatusPending:
		o.Status = OrderStatusCancelled
		return true, nil
	case OrderStatusCancelled:
		return false, nil
	default:
		return false, fmt.Errorf("%w: cannot cancel order %d in status %s", ErrInvalidTransition, o.ID, o.Status)
	}
}
