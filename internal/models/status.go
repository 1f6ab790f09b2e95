package models

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusFailed: true, OrderStatusCanceled: true},
	OrderStatusPaid:      {OrderStatusShipped: true, OrderStatusCanceled: true},
	OrderStatusFailed:    {OrderStatusPending: true, OrderStatusCanceled: true},
	OrderStatusShipped:   {OrderStatusDelivered: true},
	OrderStatusDelivered: {},
	OrderStatusCanceled:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Editable reports whether line items may still be added, changed or removed.
func (s OrderStatus) Editable() bool {
	return s == OrderStatusPending
}

func (s OrderStatus) Cancelable() bool {
	return CanTransition(s, OrderStatusCanceled)
}
