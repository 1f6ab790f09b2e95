package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// StockEngine is the reservation engine as seen by the order workflow. Every
// order item lifecycle change must go through it; nothing else touches stock.
type StockEngine interface {
	Reserve(ctx context.Context, tx *sql.Tx, item models.OrderItem, userID int64) (int, error)
	Adjust(ctx context.Context, tx *sql.Tx, item models.OrderItem, newQuantity int) (int, error)
	Release(ctx context.Context, tx *sql.Tx, item models.OrderItem) (int, error)
}

// OrderTxOptions governs every transaction that reserves or releases stock.
var OrderTxOptions = database.TxOptions{
	IsolationLevel: sql.LevelReadCommitted,
	MaxRetries:     3,
}

type CreateOrderRequest struct {
	UserID           int64
	ShippingAddress  string
	ShippingMethodID *int64
	Items            []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

func (r CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return database.ErrInvalidShippingAddress
	}
	if len(r.Items) == 0 {
		return database.ErrEmptyOrder
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return database.ErrInvalidQuantity
		}
	}
	return nil
}

func generateOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

const orderColumns = `id, user_id, order_number, status, shipping_address, payment_intent_id, total_amount, created_at, updated_at, version`

const orderItemColumns = `id, order_id, product_id, quantity, unit_price, subtotal, created_at`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateOrder places an order and reserves stock for every line in a single
// transaction. If any reservation fails nothing persists: no order, no items,
// no stock change.
func CreateOrder(ctx context.Context, db *sql.DB, engine StockEngine, req CreateOrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// A stable product order keeps concurrent multi-item orders from locking
	// the same rows in opposite orders.
	items := make([]OrderItemRequest, len(req.Items))
	copy(items, req.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var order *models.Order

	err := database.WithRetry(ctx, db, OrderTxOptions, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		if req.ShippingMethodID != nil {
			err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM shipping_methods WHERE id = $1)",
				*req.ShippingMethodID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check shipping method exists: %w", err)
			}
			if !exists {
				return database.ErrShippingMethodNotFound
			}
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, shipping_address, total_amount, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, 0, NOW(), NOW(), 1)
			 RETURNING id`,
			req.UserID, generateOrderNumber(), models.OrderStatusPending, strings.TrimSpace(req.ShippingAddress)).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			if _, err := addItem(ctx, tx, engine, orderID, req.UserID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := recomputeTotal(ctx, tx, orderID); err != nil {
			return err
		}

		if req.ShippingMethodID != nil {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO shipping_details (order_id, shipping_method_id) VALUES ($1, $2)`,
				orderID, *req.ShippingMethodID)
			if err != nil {
				return fmt.Errorf("create shipping detail: %w", err)
			}
		}

		order, err = getOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// AddOrderItem adds a line to a pending order and reserves its stock.
func AddOrderItem(ctx context.Context, db *sql.DB, engine StockEngine, orderID, productID int64, quantity int) (*models.OrderItem, error) {
	if quantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	var item *models.OrderItem

	err := database.WithRetry(ctx, db, OrderTxOptions, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Editable() {
			return database.ErrOrderNotEditable
		}

		item, err = addItem(ctx, tx, engine, orderID, order.UserID, productID, quantity)
		if err != nil {
			return err
		}

		return recomputeTotal(ctx, tx, orderID)
	})

	if err != nil {
		return nil, err
	}

	return item, nil
}

// UpdateOrderItemQuantity changes a line's quantity and reserves or releases the
// difference. The order and item rows stay locked until commit, so concurrent
// edits of the same item serialize and each sees the other's quantity.
func UpdateOrderItemQuantity(ctx context.Context, db *sql.DB, engine StockEngine, itemID int64, newQuantity int) (*models.OrderItem, error) {
	if newQuantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	var item *models.OrderItem

	err := database.WithRetry(ctx, db, OrderTxOptions, func(tx *sql.Tx) error {
		current, err := lockEditableItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		if _, err := engine.Adjust(ctx, tx, *current, newQuantity); err != nil {
			return err
		}

		subtotal := current.UnitPrice.Mul(decimal.NewFromInt(int64(newQuantity)))
		item = &models.OrderItem{}
		err = tx.QueryRowContext(ctx,
			`UPDATE order_items
			 SET quantity = $1, subtotal = $2
			 WHERE id = $3
			 RETURNING `+orderItemColumns,
			newQuantity, subtotal, itemID).Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("update order item: %w", err)
		}

		return recomputeTotal(ctx, tx, current.OrderID)
	})

	if err != nil {
		return nil, err
	}

	return item, nil
}

// DeleteOrderItem removes a line from a pending order and releases its stock.
func DeleteOrderItem(ctx context.Context, db *sql.DB, engine StockEngine, itemID int64) error {
	return database.WithRetry(ctx, db, OrderTxOptions, func(tx *sql.Tx) error {
		current, err := lockEditableItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, itemID); err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}

		if _, err := engine.Release(ctx, tx, *current); err != nil {
			return err
		}

		return recomputeTotal(ctx, tx, current.OrderID)
	})
}

// CancelOrder releases every line of the order, deletes the lines and marks
// the order canceled. The recorded total is kept for history.
func CancelOrder(ctx context.Context, db *sql.DB, engine StockEngine, orderID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, OrderTxOptions, func(tx *sql.Tx) error {
		locked, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !locked.Status.Cancelable() {
			return database.ErrInvalidStatusTransition
		}

		items, err := listItems(ctx, tx, orderID, "ORDER BY product_id, id FOR UPDATE")
		if err != nil {
			return err
		}

		for _, item := range items {
			if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, item.ID); err != nil {
				return fmt.Errorf("delete order item %d: %w", item.ID, err)
			}
			if _, err := engine.Release(ctx, tx, item); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW(), version = version + 1 WHERE id = $2`,
			models.OrderStatusCanceled, orderID)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateOrderStatus moves an order along the status graph. Cancellation is
// rejected here because it must release stock; use CancelOrder.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, to models.OrderStatus) (*models.Order, error) {
	if to == models.OrderStatusCanceled {
		return nil, database.ErrInvalidStatusTransition
	}

	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		locked, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !models.CanTransition(locked.Status, to) {
			return database.ErrInvalidStatusTransition
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW(), version = version + 1 WHERE id = $2`,
			to, orderID)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// SetPaymentReference attaches the payment processor's intent id to a pending order.
func SetPaymentReference(ctx context.Context, db *sql.DB, orderID int64, paymentIntentID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_intent_id = $1, updated_at = NOW(), version = version + 1
		 WHERE id = $2 AND status = $3`,
		paymentIntentID, orderID, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("set payment reference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := GetOrder(ctx, db, orderID); err != nil {
			return err
		}
		return database.ErrOrderNotEditable
	}

	return nil
}

// UpdateOrderStatusByPaymentRef applies a payment outcome reported by the
// payment collaborator (paid or failed).
func UpdateOrderStatusByPaymentRef(ctx context.Context, db *sql.DB, paymentIntentID string, to models.OrderStatus) (*models.Order, error) {
	if to != models.OrderStatusPaid && to != models.OrderStatusFailed {
		return nil, database.ErrInvalidStatusTransition
	}

	var orderID int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE payment_intent_id = $1`,
		paymentIntentID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order by payment reference: %w", err)
	}

	return UpdateOrderStatus(ctx, db, orderID, to)
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrder(ctx, db, id)
}

func getOrder(ctx context.Context, q queryer, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.ShippingAddress,
		&order.PaymentIntentID,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := listItems(ctx, q, id, "ORDER BY id")
	if err != nil {
		return nil, err
	}
	order.Items = items

	shipping, err := getShippingDetail(ctx, q, id)
	if err != nil && !errors.Is(err, database.ErrShippingDetailNotFound) {
		return nil, err
	}
	order.Shipping = shipping

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, order_number, status, shipping_address, total_amount, created_at, updated_at, version
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order := models.Order{UserID: userID}
		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.Status,
			&order.ShippingAddress,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// addItem inserts one order item with a price snapshot and reserves its stock.
func addItem(ctx context.Context, tx *sql.Tx, engine StockEngine, orderID, userID, productID int64, quantity int) (*models.OrderItem, error) {
	unitPrice, err := productPrice(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	item := &models.OrderItem{}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING `+orderItemColumns,
		orderID, productID, quantity, unitPrice, subtotal).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Subtotal,
		&item.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("create order item: %w", err)
	}

	if _, err := engine.Reserve(ctx, tx, *item, userID); err != nil {
		return nil, err
	}

	return item, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	order := &models.Order{ID: orderID}
	err := tx.QueryRowContext(ctx,
		`SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&order.UserID, &order.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}
	return order, nil
}

// lockEditableItem locks the parent order, then the item, and returns the item
// as currently committed. Locks are always taken order first, then item.
func lockEditableItem(ctx context.Context, tx *sql.Tx, itemID int64) (*models.OrderItem, error) {
	var orderID int64
	err := tx.QueryRowContext(ctx,
		`SELECT order_id FROM order_items WHERE id = $1`,
		itemID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("find order item %d: %w", itemID, err)
	}

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Editable() {
		return nil, database.ErrOrderNotEditable
	}

	item := &models.OrderItem{}
	err = tx.QueryRowContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = $1 FOR UPDATE`,
		itemID).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Subtotal,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("lock order item %d: %w", itemID, err)
	}

	return item, nil
}

func listItems(ctx context.Context, q queryer, orderID int64, suffix string) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 `+suffix,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func recomputeTotal(ctx context.Context, tx *sql.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET total_amount = COALESCE((SELECT SUM(subtotal) FROM order_items WHERE order_id = $1), 0),
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $1`,
		orderID)
	if err != nil {
		return fmt.Errorf("recompute order total: %w", err)
	}
	return nil
}
