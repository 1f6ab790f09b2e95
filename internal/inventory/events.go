package inventory

import "time"

const (
	EventStockReserved = "stock.reserved"
	EventStockAdjusted = "stock.adjusted"
	EventStockReleased = "stock.released"
)

// StockChanged is the payload recorded for every applied transition.
type StockChanged struct {
	ProductID   int64     `json:"product_id"`
	OrderID     int64     `json:"order_id"`
	OrderItemID int64     `json:"order_item_id"`
	Transition  string    `json:"transition"`
	Delta       int       `json:"delta"`
	NewStock    int       `json:"new_stock"`
	OccurredAt  time.Time `json:"occurred_at"`
}
