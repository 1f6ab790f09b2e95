package inventory

import (
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// Kind tags an order item lifecycle transition.
type Kind int

const (
	KindCreate Kind = iota + 1
	KindUpdateQuantity
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdateQuantity:
		return "update_quantity"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transition is one order item moving between absent and active. Item carries
// the state before the transition; for updates NewQuantity is the target.
type Transition struct {
	Kind        Kind
	Item        models.OrderItem
	UserID      int64
	NewQuantity int
}

func Create(item models.OrderItem, userID int64) Transition {
	return Transition{Kind: KindCreate, Item: item, UserID: userID}
}

func UpdateQuantity(item models.OrderItem, newQuantity int) Transition {
	return Transition{Kind: KindUpdateQuantity, Item: item, NewQuantity: newQuantity}
}

func Delete(item models.OrderItem) Transition {
	return Transition{Kind: KindDelete, Item: item}
}

// Delta is the signed stock change: debits are negative, releases positive.
func (t Transition) Delta() int {
	switch t.Kind {
	case KindCreate:
		return -t.Item.Quantity
	case KindUpdateQuantity:
		return -(t.NewQuantity - t.Item.Quantity)
	case KindDelete:
		return t.Item.Quantity
	default:
		return 0
	}
}

func (t Transition) Validate() error {
	switch t.Kind {
	case KindCreate, KindDelete:
		if t.Item.Quantity <= 0 {
			return database.ErrInvalidQuantity
		}
	case KindUpdateQuantity:
		if t.Item.Quantity <= 0 || t.NewQuantity <= 0 {
			return database.ErrInvalidQuantity
		}
	default:
		return fmt.Errorf("unknown transition kind %s", t.Kind)
	}
	if t.Item.ProductID == 0 {
		return database.ErrProductNotFound
	}
	return nil
}

func (t Transition) eventType() string {
	switch t.Kind {
	case KindCreate:
		return EventStockReserved
	case KindUpdateQuantity:
		return EventStockAdjusted
	default:
		return EventStockReleased
	}
}
