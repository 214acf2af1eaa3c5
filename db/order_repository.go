package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment/entities"
	"fulfillment/message/bus"
	"fulfillment/message/outbox"

	"github.com/jmoiron/sqlx"
)

// OrderRepository stores orders in Postgres. Messages produced by a change are
// written to the outbox in the same transaction as the change itself.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) OrderRepository {
	if db == nil {
		panic("missing db")
	}

	return OrderRepository{db: db}
}

func (r OrderRepository) Add(
	ctx context.Context,
	order entities.Order,
	onAdded func(order entities.Order) []bus.Envelope,
) (entities.Order, error) {
	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO
				orders (order_no, product_id, quantity, price, status, customer_email, created_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7)
			RETURNING order_id
		`, order.OrderNo, order.ProductID, order.Quantity, order.Price, order.Status, order.CustomerEmail, order.CreatedAt,
		).Scan(&order.ID)
		if err != nil {
			return fmt.Errorf("could not insert order: %w", err)
		}

		return publishInTx(ctx, tx, onAdded(order))
	})
	if err != nil {
		return entities.Order{}, err
	}

	return order, nil
}

func (r OrderRepository) ByID(ctx context.Context, orderID int64) (entities.Order, error) {
	var order entities.Order
	err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, fmt.Errorf("order %d: %w", orderID, entities.ErrOrderNotFound)
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("could not get order %d: %w", orderID, err)
	}

	return order, nil
}

func (r OrderRepository) UpdateByID(
	ctx context.Context,
	orderID int64,
	updateFn func(order entities.Order) (entities.Order, []bus.Envelope, error),
) (entities.Order, error) {
	var updated entities.Order

	err := updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var order entities.Order
		err := tx.GetContext(ctx, &order, `SELECT * FROM orders WHERE order_id = $1 FOR UPDATE`, orderID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %d: %w", orderID, entities.ErrOrderNotFound)
		}
		if err != nil {
			return fmt.Errorf("could not get order %d: %w", orderID, err)
		}

		order, envelopes, err := updateFn(order)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE orders
			SET status = :status
			WHERE order_id = :order_id
		`, order)
		if err != nil {
			return fmt.Errorf("could not update order %d: %w", orderID, err)
		}

		updated = order
		return publishInTx(ctx, tx, envelopes)
	})
	if err != nil {
		return entities.Order{}, err
	}

	return updated, nil
}

func publishInTx(ctx context.Context, tx *sqlx.Tx, envelopes []bus.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	publisher, err := outbox.NewPublisherForTx(ctx, tx)
	if err != nil {
		return err
	}

	return bus.NewPublisher(publisher).Publish(ctx, envelopes...)
}
