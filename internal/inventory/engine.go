package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/outbox"
)

const tracerName = "github.com/safar/storefront/internal/inventory"

// CartLineRemover drops the cart line for a (user, product) pair once the
// product is committed to an order.
type CartLineRemover interface {
	RemoveCartLine(ctx context.Context, tx *sql.Tx, userID, productID int64) error
}

// EventSink records stock events in the caller's transaction.
type EventSink interface {
	Enqueue(ctx context.Context, tx *sql.Tx, e outbox.Event) error
}

// Engine applies order item transitions to the stock ledger. All work runs in
// the transaction supplied by the caller; the engine never commits.
type Engine struct {
	logger *zap.Logger
	tracer trace.Tracer
	carts  CartLineRemover
	events EventSink
}

type Option func(*Engine)

func WithCartLines(c CartLineRemover) Option {
	return func(e *Engine) { e.carts = c }
}

func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.events = s }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reserve debits item.Quantity for a newly created order item.
func (e *Engine) Reserve(ctx context.Context, tx *sql.Tx, item models.OrderItem, userID int64) (int, error) {
	return e.Apply(ctx, tx, Create(item, userID))
}

// Adjust applies the difference between item.Quantity and newQuantity. The
// caller must hold a row lock on the order item so item.Quantity is current.
func (e *Engine) Adjust(ctx context.Context, tx *sql.Tx, item models.OrderItem, newQuantity int) (int, error) {
	return e.Apply(ctx, tx, UpdateQuantity(item, newQuantity))
}

// Release credits item.Quantity back when an order item is deleted.
func (e *Engine) Release(ctx context.Context, tx *sql.Tx, item models.OrderItem) (int, error) {
	return e.Apply(ctx, tx, Delete(item))
}

// Apply runs one transition and returns the product's new stock. Domain errors
// from the ledger are returned unchanged.
func (e *Engine) Apply(ctx context.Context, tx *sql.Tx, t Transition) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	delta := t.Delta()

	ctx, span := e.tracer.Start(ctx, "inventory."+t.Kind.String())
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", t.Item.ProductID),
		attribute.Int64("order.id", t.Item.OrderID),
		attribute.Int64("order_item.id", t.Item.ID),
		attribute.Int("inventory.delta", delta),
	)

	newStock, err := ApplyDelta(ctx, tx, t.Item.ProductID, delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("stock transition rejected",
			zap.String("transition", t.Kind.String()),
			zap.Int64("product_id", t.Item.ProductID),
			zap.Int64("order_id", t.Item.OrderID),
			zap.Int("delta", delta),
			zap.Error(err),
		)
		return 0, err
	}
	span.SetAttributes(attribute.Int("inventory.new_stock", newStock))

	if delta != 0 {
		if err := e.recordEvent(ctx, tx, t, delta, newStock); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	if t.Kind == KindCreate {
		e.removeCartLine(ctx, tx, t.UserID, t.Item.ProductID)
	}

	e.logger.Debug("stock transition applied",
		zap.String("transition", t.Kind.String()),
		zap.Int64("product_id", t.Item.ProductID),
		zap.Int("delta", delta),
		zap.Int("new_stock", newStock),
	)
	span.SetStatus(codes.Ok, "")

	return newStock, nil
}

func (e *Engine) recordEvent(ctx context.Context, tx *sql.Tx, t Transition, delta, newStock int) error {
	if e.events == nil {
		return nil
	}

	event, err := outbox.NewEvent(ctx, "product", strconv.FormatInt(t.Item.ProductID, 10), t.eventType(), StockChanged{
		ProductID:   t.Item.ProductID,
		OrderID:     t.Item.OrderID,
		OrderItemID: t.Item.ID,
		Transition:  t.Kind.String(),
		Delta:       delta,
		NewStock:    newStock,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := e.events.Enqueue(ctx, tx, event); err != nil {
		return fmt.Errorf("record stock event: %w", err)
	}
	return nil
}

// removeCartLine is best effort. It runs under a savepoint so a failure cannot
// poison the enclosing transaction, and it is logged instead of returned.
func (e *Engine) removeCartLine(ctx context.Context, tx *sql.Tx, userID, productID int64) {
	if e.carts == nil || userID == 0 {
		return
	}

	err := database.WithSavepoint(ctx, tx, "cart_line_cleanup", func() error {
		return e.carts.RemoveCartLine(ctx, tx, userID, productID)
	})
	if err != nil {
		e.logger.Error("remove cart line after reservation failed",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return
	}

	e.logger.Debug("removed cart line after reservation",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
	)
}
