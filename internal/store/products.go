package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

func CreateProduct(ctx context.Context, db *sql.DB, sku, name, description string, price decimal.Decimal, stock int) (*models.Product, error) {
	if price.IsNegative() {
		return nil, database.ErrNegativePrice
	}
	if stock < 0 {
		return nil, database.ErrNegativeStock
	}

	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, price, stock_quantity, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), 1)
		RETURNING id, sku, name, description, price, stock_quantity, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, sku, name, description, price, stock).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrDuplicateSKU
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, description, price, stock_quantity, created_at, updated_at, version
		FROM products
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// productPrice reads the current price for the order item snapshot. Stock is
// not read here; sufficiency is decided by the ledger.
func productPrice(ctx context.Context, tx *sql.Tx, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT price FROM products WHERE id = $1`,
		productID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, database.ErrProductNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("get price of product %d: %w", productID, err)
	}
	return price, nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := `
		SELECT id, sku, name, description, price, stock_quantity, created_at, updated_at, version
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offsetOf(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.StockQuantity,
			&product.CreatedAt,
			&product.UpdatedAt,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
