package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/storefront/internal/models"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	rdb := NewClient(fmt.Sprintf("%s:%s", host, port.Port()))

	return rdb, func() {
		_ = rdb.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
}

func TestStatusCache(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	c := NewStatusCache(rdb, time.Minute)

	if _, ok, err := c.Get(ctx, 7); err != nil || ok {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, 7, models.OrderStatusPaid); err != nil {
		t.Fatalf("Set: %v", err)
	}
	status, ok, err := c.Get(ctx, 7)
	if err != nil || !ok || status != models.OrderStatusPaid {
		t.Errorf("Expected cached paid, got %q ok=%v err=%v", status, ok, err)
	}

	if err := c.Invalidate(ctx, 7); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, 7); ok {
		t.Error("Expected miss after invalidate")
	}
}

func TestIdempotencyStore(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Minute)

	claimed, err := s.Claim(ctx, 1, "abc")
	if err != nil || !claimed {
		t.Fatalf("First claim should win, got %v err=%v", claimed, err)
	}
	if claimed, _ := s.Claim(ctx, 1, "abc"); claimed {
		t.Error("Second claim of the same key should lose")
	}
	if claimed, _ := s.Claim(ctx, 2, "abc"); !claimed {
		t.Error("Keys are scoped per user")
	}

	if _, ok, err := s.Lookup(ctx, 1, "abc"); err != nil || ok {
		t.Errorf("In-flight claim should not resolve, got ok=%v err=%v", ok, err)
	}

	if err := s.Complete(ctx, 1, "abc", 42); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	orderID, ok, err := s.Lookup(ctx, 1, "abc")
	if err != nil || !ok || orderID != 42 {
		t.Errorf("Expected order 42, got %d ok=%v err=%v", orderID, ok, err)
	}

	if err := s.Release(ctx, 2, "abc"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if claimed, _ := s.Claim(ctx, 2, "abc"); !claimed {
		t.Error("Released key should be claimable again")
	}
}
