package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

func CreateShippingMethod(ctx context.Context, db *sql.DB, name string, rate decimal.Decimal) (*models.ShippingMethod, error) {
	if rate.IsNegative() {
		return nil, database.ErrNegativePrice
	}

	method := &models.ShippingMethod{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO shipping_methods (name, rate) VALUES ($1, $2) RETURNING id, name, rate`,
		name, rate).Scan(&method.ID, &method.Name, &method.Rate)
	if err != nil {
		return nil, fmt.Errorf("create shipping method: %w", err)
	}

	return method, nil
}

func GetShippingDetail(ctx context.Context, db *sql.DB, orderID int64) (*models.ShippingDetail, error) {
	return getShippingDetail(ctx, db, orderID)
}

func getShippingDetail(ctx context.Context, q queryer, orderID int64) (*models.ShippingDetail, error) {
	detail := &models.ShippingDetail{}

	err := q.QueryRowContext(ctx,
		`SELECT order_id, shipping_method_id, tracking_number, shipped_at, delivered_at
		 FROM shipping_details
		 WHERE order_id = $1`,
		orderID).Scan(
		&detail.OrderID,
		&detail.ShippingMethodID,
		&detail.TrackingNumber,
		&detail.ShippedAt,
		&detail.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrShippingDetailNotFound
		}
		return nil, fmt.Errorf("get shipping detail: %w", err)
	}

	return detail, nil
}

func UpdateTrackingNumber(ctx context.Context, db *sql.DB, orderID int64, trackingNumber string) (*models.ShippingDetail, error) {
	detail := &models.ShippingDetail{}

	err := db.QueryRowContext(ctx,
		`UPDATE shipping_details
		 SET tracking_number = $1
		 WHERE order_id = $2
		 RETURNING order_id, shipping_method_id, tracking_number, shipped_at, delivered_at`,
		trackingNumber, orderID).Scan(
		&detail.OrderID,
		&detail.ShippingMethodID,
		&detail.TrackingNumber,
		&detail.ShippedAt,
		&detail.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrShippingDetailNotFound
		}
		return nil, fmt.Errorf("update tracking number: %w", err)
	}

	return detail, nil
}

// RecordTrackingInfo stores carrier timestamps. Nil values keep what is
// already recorded. Only shipping fields are written.
func RecordTrackingInfo(ctx context.Context, db *sql.DB, orderID int64, shippedAt, deliveredAt *time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE shipping_details
		 SET shipped_at = COALESCE($1::timestamptz, shipped_at),
		     delivered_at = COALESCE($2::timestamptz, delivered_at)
		 WHERE order_id = $3`,
		shippedAt, deliveredAt, orderID)
	if err != nil {
		return fmt.Errorf("record tracking info: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrShippingDetailNotFound
	}

	return nil
}
