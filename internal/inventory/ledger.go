package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
)

// The guard lives in the WHERE clause so the check and the write are one
// statement. Under READ COMMITTED a blocked writer re-evaluates the predicate
// against the row version committed by the transaction it waited on, so two
// debits can never both pass against the same stale value.
const applyDeltaQuery = `
	UPDATE products
	SET stock_quantity = stock_quantity + $2,
	    version = version + 1,
	    updated_at = NOW()
	WHERE id = $1
	  AND stock_quantity + $2 >= 0
	RETURNING stock_quantity`

// ApplyDelta atomically adds delta to the product's stock and returns the new
// quantity. Negative deltas fail with *InsufficientStockError when they would
// take stock below zero; positive deltas always apply. A missing product yields
// database.ErrProductNotFound. On failure stock is left unchanged.
//
// This is the only function that writes products.stock_quantity.
func ApplyDelta(ctx context.Context, tx *sql.Tx, productID int64, delta int) (int, error) {
	if delta == 0 {
		return currentStock(ctx, tx, productID)
	}

	var newStock int
	err := tx.QueryRowContext(ctx, applyDeltaQuery, productID, delta).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("apply stock delta %d to product %d: %w", delta, productID, err)
	}

	available, err := currentStock(ctx, tx, productID)
	if err != nil {
		return 0, err
	}

	return 0, &InsufficientStockError{
		ProductID: productID,
		Requested: -delta,
		Available: available,
	}
}

func currentStock(ctx context.Context, tx *sql.Tx, productID int64) (int, error) {
	var stock int
	err := tx.QueryRowContext(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1`,
		productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrProductNotFound
		}
		return 0, fmt.Errorf("read stock for product %d: %w", productID, err)
	}
	return stock, nil
}
