package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
	}
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithRetry runs fn in a fresh transaction, retrying deadlocks, serialization
// failures and lock timeouts with jittered exponential backoff. Permanent errors
// (including the domain sentinels) are returned unwrapped on the first attempt.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	var lastErr error
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tx, err := db.BeginTx(ctx, &sql.TxOptions{
			Isolation: opts.IsolationLevel,
			ReadOnly:  opts.ReadOnly,
		})
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		err = fn(tx)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
			}

			if !IsRetryable(err) {
				return err
			}

			if attempt == opts.MaxRetries {
				return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
			}

			lastErr = err
			if err := sleepBackoff(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			continue
		}

		if err := tx.Commit(); err != nil {
			if !IsRetryable(err) {
				return fmt.Errorf("commit transaction: %w", err)
			}

			if attempt == opts.MaxRetries {
				return fmt.Errorf("max retries (%d) exceeded on commit: %w", opts.MaxRetries, err)
			}

			lastErr = err
			if err := sleepBackoff(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			continue
		}

		return nil
	}

	return lastErr
}

// WithSavepoint runs fn inside a named savepoint of tx. If fn fails the work done
// since the savepoint is rolled back and the enclosing transaction stays usable.
func WithSavepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s failed: %v (original error: %w)", name, rbErr, err)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}

	return nil
}

func sleepBackoff(ctx context.Context, backoff time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(backoff / 4)))

	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
