package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505", "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderItemNotFound       = errors.New("order item not found")
	ErrShippingMethodNotFound  = errors.New("shipping method not found")
	ErrShippingDetailNotFound  = errors.New("shipping detail not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrEmptyOrder              = errors.New("order must contain at least one item")
	ErrInvalidShippingAddress  = errors.New("shipping address cannot be empty")
	ErrOrderNotEditable        = errors.New("order can no longer be edited")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrNegativePrice           = errors.New("price cannot be negative")
	ErrNegativeStock           = errors.New("stock quantity cannot be negative")
	ErrInvalidEmail            = errors.New("invalid email address")
	ErrEmailTaken              = errors.New("email already registered")
	ErrDuplicateSKU            = errors.New("sku already exists")
	ErrInvalidCursor           = errors.New("invalid cursor")
)
