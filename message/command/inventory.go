package command

import (
	"context"
	"fmt"

	"fulfillment/entities"
	"fulfillment/metrics"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

func (h Handler) DeductInventory(ctx context.Context, cmd *entities.DeductInventory_v1) error {
	change := cmd.StockChange()

	outcome, err := h.ledger.Deduct(ctx, change)
	if err != nil {
		return fmt.Errorf("could not deduct stock for order %d: %w", cmd.OrderID, err)
	}

	logStockChange(ctx, "deduct", change, outcome)
	return nil
}

func (h Handler) RestoreInventory(ctx context.Context, cmd *entities.OrderCancelled_v1) error {
	change := cmd.StockChange()

	outcome, err := h.ledger.Restore(ctx, change)
	if err != nil {
		return fmt.Errorf("could not restore stock for order %d: %w", cmd.OrderID, err)
	}

	logStockChange(ctx, "restore", change, outcome)
	return nil
}

func logStockChange(ctx context.Context, kind string, change entities.StockChange, outcome entities.StockOutcome) {
	metrics.StockChanges.WithLabelValues(kind, string(outcome)).Inc()

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"order_id":   change.OrderID,
		"product_id": change.ProductID,
		"quantity":   change.Quantity,
		"outcome":    outcome,
	})

	switch outcome {
	case entities.StockApplied:
		logger.Infof("Stock %s applied", kind)
	case entities.StockDuplicate, entities.StockNotDeducted:
		logger.Infof("Stock %s skipped", kind)
	default:
		// no reply channel to the order side, the failure is only visible here
		logger.Errorf("Stock %s failed", kind)
	}
}
