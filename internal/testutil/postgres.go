// Package testutil starts a disposable PostgreSQL for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/storefront/migrations"
)

// SetupTestDB starts postgres:14-alpine, applies the embedded migrations and
// returns the handle plus a cleanup func. Skipped under -short.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(20)

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	files, err := migrations.Load("up")
	if err != nil {
		return err
	}

	for _, m := range files {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("execute migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// StockOf reads a product's stock straight from the table.
func StockOf(t *testing.T, db *sql.DB, productID int64) int {
	t.Helper()

	var stock int
	if err := db.QueryRow(`SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("Read stock of product %d: %v", productID, err)
	}
	return stock
}
