package http

import (
	"net/http"

	"fulfillment/entities"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type inventoryRequest struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (h Handler) GetInventories(c echo.Context) error {
	records, err := h.inventory.All(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

func (h Handler) GetInventory(c echo.Context) error {
	productID, err := idParam(c, "product_id")
	if err != nil {
		return err
	}

	record, err := h.inventory.Get(c.Request().Context(), productID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, record)
}

func (h Handler) PutInventory(c echo.Context) error {
	productID, err := idParam(c, "product_id")
	if err != nil {
		return err
	}

	var req inventoryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	record := entities.InventoryRecord{
		ProductID: productID,
		Quantity:  req.Quantity,
		Price:     req.Price,
	}
	if err := h.inventory.Save(c.Request().Context(), record); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, record)
}
