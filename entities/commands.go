package entities

import "fmt"

type DeductInventory_v1 struct {
	Header EventHeader `json:"header"`

	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func NewDeductInventory(order Order) DeductInventory_v1 {
	return DeductInventory_v1{
		Header:    NewEventHeaderWithIdempotencyKey(fmt.Sprintf("deduct-%d", order.ID)),
		OrderID:   order.ID,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
	}
}

func (c DeductInventory_v1) StockChange() StockChange {
	return StockChange{OrderID: c.OrderID, ProductID: c.ProductID, Quantity: c.Quantity}
}

type SendEmail_v1 struct {
	Header EventHeader `json:"header"`

	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
