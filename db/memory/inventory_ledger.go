package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fulfillment/entities"
)

// InventoryLedger keeps stock in memory. Every operation runs under one lock,
// so the check, the dedup record and the mutation happen as a single step.
type InventoryLedger struct {
	lock      sync.Mutex
	records   map[int64]entities.InventoryRecord
	processed map[string]struct{}
}

func NewInventoryLedger(seed ...entities.InventoryRecord) *InventoryLedger {
	l := &InventoryLedger{
		records:   map[int64]entities.InventoryRecord{},
		processed: map[string]struct{}{},
	}
	for _, r := range seed {
		l.records[r.ProductID] = r
	}
	return l
}

func (l *InventoryLedger) Deduct(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if change.OrderID != 0 {
		if _, ok := l.processed[change.DeductKey()]; ok {
			return entities.StockDuplicate, nil
		}
	}

	record, ok := l.records[change.ProductID]
	if !ok {
		return entities.StockProductNotFound, nil
	}
	if record.Quantity < change.Quantity {
		return entities.StockInsufficient, nil
	}

	record.Quantity -= change.Quantity
	l.records[change.ProductID] = record
	if change.OrderID != 0 {
		l.processed[change.DeductKey()] = struct{}{}
	}

	return entities.StockApplied, nil
}

func (l *InventoryLedger) Restore(ctx context.Context, change entities.StockChange) (entities.StockOutcome, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if change.OrderID != 0 {
		if _, ok := l.processed[change.RestoreKey()]; ok {
			return entities.StockDuplicate, nil
		}
	}

	record, ok := l.records[change.ProductID]
	if !ok {
		return entities.StockProductNotFound, nil
	}

	if change.OrderID != 0 {
		if _, deducted := l.processed[change.DeductKey()]; !deducted {
			return entities.StockNotDeducted, nil
		}
	}

	record.Quantity += change.Quantity
	l.records[change.ProductID] = record
	if change.OrderID != 0 {
		l.processed[change.RestoreKey()] = struct{}{}
	}

	return entities.StockApplied, nil
}

func (l *InventoryLedger) Get(ctx context.Context, productID int64) (entities.InventoryRecord, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	record, ok := l.records[productID]
	if !ok {
		return entities.InventoryRecord{}, fmt.Errorf("product %d: %w", productID, entities.ErrProductNotFound)
	}
	return record, nil
}

func (l *InventoryLedger) Save(ctx context.Context, record entities.InventoryRecord) error {
	if record.Quantity < 0 {
		return entities.ValidationError{Err: fmt.Errorf("quantity must not be negative")}
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	l.records[record.ProductID] = record
	return nil
}

func (l *InventoryLedger) All(ctx context.Context) ([]entities.InventoryRecord, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	records := make([]entities.InventoryRecord, 0, len(l.records))
	for _, r := range l.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ProductID < records[j].ProductID
	})
	return records, nil
}
