package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// AddCartItem puts quantity units of a product in the user's cart, adding to
// an existing line for the same product.
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}

	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity, created_at`

	err := db.QueryRowContext(ctx, query, userID, productID, quantity).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("add cart item: %w", database.ErrProductNotFound)
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return item, nil
}

func ListCartItems(ctx context.Context, db *sql.DB, userID int64) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, product_id, quantity, created_at
		 FROM cart_items
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CartLines is the reservation engine's cart collaborator.
type CartLines struct{}

func (CartLines) RemoveCartLine(ctx context.Context, tx *sql.Tx, userID, productID int64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}
