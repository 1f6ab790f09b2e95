package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/storefront/internal/config"
)

// NewConnection opens the pool and waits for Postgres to answer, retrying the
// ping up to cfg.MaxRetries times with a doubling delay.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt >= cfg.MaxRetries {
			break
		}
		if sleepErr := sleepBackoff(ctx, backoff); sleepErr != nil {
			err = sleepErr
			break
		}
		backoff *= 2
	}

	db.Close()
	return nil, fmt.Errorf("ping database: %w", err)
}
