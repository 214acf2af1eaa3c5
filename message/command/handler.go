package command

import (
	"context"

	"fulfillment/entities"
	"fulfillment/pkg/retry"
)

type InventoryLedger interface {
	Deduct(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error)
	Restore(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Handler struct {
	ledger     InventoryLedger
	mailer     Mailer
	mailPolicy retry.Policy
}

func NewHandler(ledger InventoryLedger, mailer Mailer, mailPolicy retry.Policy) Handler {
	if ledger == nil {
		panic("ledger is required")
	}
	if mailer == nil {
		panic("mailer is required")
	}

	return Handler{
		ledger:     ledger,
		mailer:     mailer,
		mailPolicy: mailPolicy,
	}
}
