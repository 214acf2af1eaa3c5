package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"fulfillment/entities"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	orders    OrderService
	inventory InventoryRepository
}

type OrderService interface {
	CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error)
	GetOrder(ctx context.Context, orderID int64) (entities.Order, error)
	PayOrder(ctx context.Context, orderID int64) (bool, error)
	CancelOrder(ctx context.Context, orderID int64) (bool, error)
}

type InventoryRepository interface {
	Get(ctx context.Context, productID int64) (entities.InventoryRecord, error)
	Save(ctx context.Context, record entities.InventoryRecord) error
	All(ctx context.Context) ([]entities.InventoryRecord, error)
}

func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// toHTTPError maps domain errors to status codes; anything else ends up as 500.
func toHTTPError(err error) error {
	var validationErr entities.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, entities.ErrOrderNotFound), errors.Is(err, entities.ErrProductNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}
