package http

import (
	"net/http"

	libHttp "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func NewHttpRouter(
	orders OrderService,
	inventory InventoryRepository,
) *echo.Echo {
	e := libHttp.NewEcho()

	e.Use(otelecho.Middleware("fulfillment"))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := Handler{
		orders:    orders,
		inventory: inventory,
	}

	e.POST("/orders", handler.PostOrders)
	e.GET("/orders/:id", handler.GetOrder)
	e.POST("/orders/:id/pay", handler.PostPayOrder)
	e.POST("/orders/:id/cancel", handler.PostCancelOrder)

	e.GET("/inventories", handler.GetInventories)
	e.GET("/inventories/product/:product_id", handler.GetInventory)
	e.PUT("/inventories/product/:product_id", handler.PutInventory)

	return e
}
