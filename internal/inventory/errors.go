package inventory

import (
	"fmt"

	"github.com/safar/storefront/internal/database"
)

// InsufficientStockError reports a rejected debit. It matches
// database.ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return database.ErrInsufficientStock
}
