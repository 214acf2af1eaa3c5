package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type InventoryRecord struct {
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// StockChange is a single deduct or restore request against one product.
// OrderID is the dedup key; zero means the change is not tied to an order.
type StockChange struct {
	OrderID   int64
	ProductID int64
	Quantity  int
}

func (c StockChange) DeductKey() string {
	return fmt.Sprintf("deduct:%d", c.OrderID)
}

func (c StockChange) RestoreKey() string {
	return fmt.Sprintf("restore:%d", c.OrderID)
}

type StockOutcome string

const (
	StockApplied         StockOutcome = "applied"
	StockDuplicate       StockOutcome = "duplicate"
	StockProductNotFound StockOutcome = "product_not_found"
	StockInsufficient    StockOutcome = "insufficient"
	StockNotDeducted     StockOutcome = "not_deducted"
)

func (o StockOutcome) Applied() bool {
	return o == StockApplied
}
