package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testutil"
)

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()

	if _, err := store.CreateProduct(ctx, nil, "NEG-1", "Neg", "", decimal.NewFromInt(-1), 1); !errors.Is(err, database.ErrNegativePrice) {
		t.Errorf("Expected negative price error, got: %v", err)
	}
	if _, err := store.CreateProduct(ctx, nil, "NEG-2", "Neg", "", decimal.NewFromInt(1), -1); !errors.Is(err, database.ErrNegativeStock) {
		t.Errorf("Expected negative stock error, got: %v", err)
	}
}

func TestProductsAndUsers(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	for i, sku := range []string{"LIST-001", "LIST-002", "LIST-003"} {
		if _, err := store.CreateProduct(ctx, db, sku, sku, "", decimal.NewFromInt(int64(10+i)), i); err != nil {
			t.Fatalf("Create product %s: %v", sku, err)
		}
	}

	page, err := store.ListProducts(ctx, db, 1, 2)
	if err != nil {
		t.Fatalf("List products: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Errorf("Expected 3 products over 2 pages, got %d over %d", page.Total, page.TotalPages)
	}

	if _, err := store.GetProduct(ctx, db, 9999); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}

	if _, err := store.CreateProduct(ctx, db, "LIST-001", "Again", "", decimal.NewFromInt(1), 1); !errors.Is(err, database.ErrDuplicateSKU) {
		t.Errorf("Expected duplicate sku, got: %v", err)
	}

	user, err := store.CreateUser(ctx, db, "  SomeOne@Example.com ", "Someone")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, db, "someone@example.com", "Twin"); !errors.Is(err, database.ErrEmailTaken) {
		t.Errorf("Expected email taken, got: %v", err)
	}
	if _, err := store.CreateUser(ctx, db, "not-an-email", "Nobody"); !errors.Is(err, database.ErrInvalidEmail) {
		t.Errorf("Expected invalid email, got: %v", err)
	}
	got, err := store.GetUser(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if got.Email != "someone@example.com" {
		t.Errorf("Unexpected email %q", got.Email)
	}
	if _, err := store.GetUser(ctx, db, user.ID+1); !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("Expected user not found, got: %v", err)
	}
}

func TestCartItemsAccumulate(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "cart@example.com", "Cart")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	product, err := store.CreateProduct(ctx, db, "CART-LIST-001", "Product", "", decimal.NewFromInt(3), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add cart item: %v", err)
	}
	item, err := store.AddCartItem(ctx, db, user.ID, product.ID, 3)
	if err != nil {
		t.Fatalf("Add cart item again: %v", err)
	}
	if item.Quantity != 5 {
		t.Errorf("Expected cart quantity 5, got %d", item.Quantity)
	}

	if _, err := store.AddCartItem(ctx, db, user.ID, 9999, 1); !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}
	if _, err := store.AddCartItem(ctx, db, user.ID, product.ID, 0); !errors.Is(err, database.ErrInvalidQuantity) {
		t.Errorf("Expected invalid quantity, got: %v", err)
	}

	items, err := store.ListCartItems(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List cart items: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected a single cart line, got %d", len(items))
	}

	// Adding to the cart never touches stock.
	if stock := testutil.StockOf(t, db, product.ID); stock != 10 {
		t.Errorf("Expected stock 10, got %d", stock)
	}
}

func TestShippingTracking(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	engine := newEngine(db)

	user, err := store.CreateUser(ctx, db, "ship@example.com", "Ship")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	product, err := store.CreateProduct(ctx, db, "SHIP-001", "Product", "", decimal.NewFromInt(3), 10)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	method, err := store.CreateShippingMethod(ctx, db, "Express", decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("Create shipping method: %v", err)
	}

	order, err := store.CreateOrder(ctx, db, engine, store.CreateOrderRequest{
		UserID:           user.ID,
		ShippingAddress:  "x",
		ShippingMethodID: &method.ID,
		Items:            []store.OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	detail, err := store.UpdateTrackingNumber(ctx, db, order.ID, "TRACK-1")
	if err != nil {
		t.Fatalf("Update tracking number: %v", err)
	}
	if detail.TrackingNumber == nil || *detail.TrackingNumber != "TRACK-1" {
		t.Errorf("Unexpected tracking number %v", detail.TrackingNumber)
	}

	shipped := time.Now().UTC().Truncate(time.Second)
	if err := store.RecordTrackingInfo(ctx, db, order.ID, &shipped, nil); err != nil {
		t.Fatalf("Record shipped: %v", err)
	}
	delivered := shipped.Add(48 * time.Hour)
	if err := store.RecordTrackingInfo(ctx, db, order.ID, nil, &delivered); err != nil {
		t.Fatalf("Record delivered: %v", err)
	}

	detail, err = store.GetShippingDetail(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get shipping detail: %v", err)
	}
	if detail.ShippedAt == nil || !detail.ShippedAt.Equal(shipped) {
		t.Errorf("Shipped timestamp should be kept, got %v", detail.ShippedAt)
	}
	if detail.DeliveredAt == nil || !detail.DeliveredAt.Equal(delivered) {
		t.Errorf("Expected delivered at %v, got %v", delivered, detail.DeliveredAt)
	}

	// Tracking data never alters stock or order lines.
	current, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if current.Status != models.OrderStatusPending || len(current.Items) != 1 {
		t.Errorf("Order changed by tracking update: %+v", current)
	}
	if stock := testutil.StockOf(t, db, product.ID); stock != 9 {
		t.Errorf("Expected stock 9, got %d", stock)
	}

	if err := store.RecordTrackingInfo(ctx, db, order.ID+100, &shipped, nil); !errors.Is(err, database.ErrShippingDetailNotFound) {
		t.Errorf("Expected shipping detail not found, got: %v", err)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := store.OrderCursor{CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), ID: 42}

	out, err := store.DecodeCursor(store.EncodeCursor(in))
	if err != nil {
		t.Fatalf("Decode cursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Errorf("Cursor mismatch: %+v != %+v", out, in)
	}

	for _, bad := range []string{"not base64!", "e30"} {
		if _, err := store.DecodeCursor(bad); !errors.Is(err, database.ErrInvalidCursor) {
			t.Errorf("DecodeCursor(%q) = %v, want invalid cursor", bad, err)
		}
	}
}
