package http

import (
	"net/http"

	"fulfillment/entities"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type createOrderRequest struct {
	OrderNo       string          `json:"order_no"`
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	CustomerEmail string          `json:"customer_email"`
}

func (h Handler) PostOrders(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), entities.Order{
		OrderNo:       req.OrderNo,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Price:         req.Price,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, order)
}

func (h Handler) GetOrder(c echo.Context) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h Handler) PostPayOrder(c echo.Context) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	paid, err := h.orders.PayOrder(c.Request().Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, paid)
}

func (h Handler) PostCancelOrder(c echo.Context) error {
	orderID, err := idParam(c, "id")
	if err != nil {
		return err
	}

	cancelled, err := h.orders.CancelOrder(c.Request().Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cancelled)
}
