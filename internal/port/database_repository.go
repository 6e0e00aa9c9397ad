package port

import (
	"context"
	"errors"

	"github.com/rl1809/catalog-fulfillment/internal/core/domain"
)

var (
	// ErrTxConflict marks a transaction aborted by the database because of
	// lock contention (deadlock, lock wait timeout, busy database). The whole
	// unit of work may be retried.
	ErrTxConflict = errors.New("transaction conflict")

	// ErrStockConflict is returned when a conditional decrement matched no row.
	ErrStockConflict = errors.New("conditional stock update matched no row")
)

// UnitOfWork runs fn inside a single transaction. The transaction commits
// only when fn returns nil; any error or context cancellation rolls it back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repo InventoryRepository) error) error
}

// InventoryRepository is bound to the transaction of the enclosing UnitOfWork.
type InventoryRepository interface {
	// LockItems reads and exclusively locks the rows for ids, ordered by id.
	// Ids with no row are simply absent from the result.
	LockItems(ctx context.Context, ids []int64) ([]domain.InventoryItem, error)

	// DecrementStock subtracts quantity from the stored value, guarded by
	// stock >= quantity.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

type InventoryReader interface {
	// GetInventory returns nil when the row does not exist
	GetInventory(ctx context.Context, productID int64) (*domain.InventoryItem, error)
}
