package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment/entities"

	"github.com/jmoiron/sqlx"
)

// errStockNotChanged rolls back the dedup record when the change is rejected.
var errStockNotChanged = errors.New("stock not changed")

// InventoryLedger stores stock in Postgres. The dedup record and the stock
// mutation of one change commit or roll back together.
type InventoryLedger struct {
	db *sqlx.DB
}

func NewInventoryLedger(db *sqlx.DB) InventoryLedger {
	if db == nil {
		panic("missing db")
	}

	return InventoryLedger{db: db}
}

func (l InventoryLedger) Deduct(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error) {
	return l.applyChange(ctx, change.DeductKey(), change.OrderID != 0, func(ctx context.Context, tx *sqlx.Tx) (entities.StockOutcome, error) {
		quantity, err := lockedQuantity(ctx, tx, change.ProductID)
		if errors.Is(err, entities.ErrProductNotFound) {
			return entities.StockProductNotFound, nil
		}
		if err != nil {
			return "", err
		}
		if quantity < change.Quantity {
			return entities.StockInsufficient, nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - $1
			WHERE product_id = $2
		`, change.Quantity, change.ProductID)
		if err != nil {
			return "", fmt.Errorf("could not deduct stock of product %d: %w", change.ProductID, err)
		}

		return entities.StockApplied, nil
	})
}

func (l InventoryLedger) Restore(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error) {
	return l.applyChange(ctx, change.RestoreKey(), change.OrderID != 0, func(ctx context.Context, tx *sqlx.Tx) (entities.StockOutcome, error) {
		if _, err := lockedQuantity(ctx, tx, change.ProductID); errors.Is(err, entities.ErrProductNotFound) {
			return entities.StockProductNotFound, nil
		} else if err != nil {
			return "", err
		}

		if change.OrderID != 0 {
			var deducted bool
			err := tx.GetContext(ctx, &deducted, `
				SELECT EXISTS (SELECT 1 FROM processed_stock_changes WHERE change_key = $1)
			`, change.DeductKey())
			if err != nil {
				return "", fmt.Errorf("could not check deduction of order %d: %w", change.OrderID, err)
			}
			if !deducted {
				return entities.StockNotDeducted, nil
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity + $1
			WHERE product_id = $2
		`, change.Quantity, change.ProductID)
		if err != nil {
			return "", fmt.Errorf("could not restore stock of product %d: %w", change.ProductID, err)
		}

		return entities.StockApplied, nil
	})
}

func (l InventoryLedger) applyChange(
	ctx context.Context,
	key string,
	dedup bool,
	fn func(ctx context.Context, tx *sqlx.Tx) (entities.StockOutcome, error),
) (entities.StockOutcome, error) {
	var outcome entities.StockOutcome

	err := updateInTx(ctx, l.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		if dedup {
			_, err := tx.ExecContext(ctx, `INSERT INTO processed_stock_changes (change_key) VALUES ($1)`, key)
			if isErrorUniqueViolation(err) {
				outcome = entities.StockDuplicate
				return errStockNotChanged
			}
			if err != nil {
				return fmt.Errorf("could not record stock change %s: %w", key, err)
			}
		}

		var err error
		outcome, err = fn(ctx, tx)
		if err != nil {
			return err
		}
		if !outcome.Applied() {
			return errStockNotChanged
		}

		return nil
	})
	if errors.Is(err, errStockNotChanged) {
		return outcome, nil
	}
	if err != nil {
		return "", err
	}

	return outcome, nil
}

func lockedQuantity(ctx context.Context, tx *sqlx.Tx, productID int64) (int, error) {
	var quantity int
	err := tx.GetContext(ctx, &quantity, `SELECT quantity FROM inventory WHERE product_id = $1 FOR UPDATE`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("product %d: %w", productID, entities.ErrProductNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("could not get stock of product %d: %w", productID, err)
	}

	return quantity, nil
}

func (l InventoryLedger) Get(ctx context.Context, productID int64) (entities.InventoryRecord, error) {
	var record entities.InventoryRecord
	err := l.db.GetContext(ctx, &record, `SELECT * FROM inventory WHERE product_id = $1`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.InventoryRecord{}, fmt.Errorf("product %d: %w", productID, entities.ErrProductNotFound)
	}
	if err != nil {
		return entities.InventoryRecord{}, fmt.Errorf("could not get product %d: %w", productID, err)
	}

	return record, nil
}

func (l InventoryLedger) Save(ctx context.Context, record entities.InventoryRecord) error {
	if record.Quantity < 0 {
		return entities.ValidationError{Err: fmt.Errorf("quantity must not be negative")}
	}

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO
			inventory (product_id, quantity, price)
		VALUES
			(:product_id, :quantity, :price)
		ON CONFLICT (product_id) DO UPDATE SET
			quantity = excluded.quantity,
			price = excluded.price
	`, record)
	if err != nil {
		return fmt.Errorf("could not save product %d: %w", record.ProductID, err)
	}

	return nil
}

func (l InventoryLedger) All(ctx context.Context) ([]entities.InventoryRecord, error) {
	var records []entities.InventoryRecord
	err := l.db.SelectContext(ctx, &records, `SELECT * FROM inventory ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("could not list inventory: %w", err)
	}

	return records, nil
}

// Seed inserts the records that are not stored yet, keeping existing stock.
func (l InventoryLedger) Seed(ctx context.Context, records ...entities.InventoryRecord) error {
	for _, record := range records {
		_, err := l.db.NamedExecContext(ctx, `
			INSERT INTO
				inventory (product_id, quantity, price)
			VALUES
				(:product_id, :quantity, :price)
			ON CONFLICT (product_id) DO NOTHING
		`, record)
		if err != nil {
			return fmt.Errorf("could not seed product %d: %w", record.ProductID, err)
		}
	}

	return nil
}
