package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentIntentID *string         `json:"payment_intent_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Items           []OrderItem     `json:"items,omitempty"`
	Shipping        *ShippingDetail `json:"shipping,omitempty"`
}

// OrderItem is a claim of Quantity units against its product's stock.
// UnitPrice is snapshotted at creation and never changes afterwards.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type ShippingMethod struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

type ShippingDetail struct {
	OrderID          int64      `json:"order_id"`
	ShippingMethodID int64      `json:"shipping_method_id"`
	TrackingNumber   *string    `json:"tracking_number,omitempty"`
	ShippedAt        *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
}
