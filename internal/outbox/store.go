package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Enqueue writes the event in the caller's transaction so it commits or rolls
// back together with the state change it describes.
func (s *PostgresStore) Enqueue(ctx context.Context, tx *sql.Tx, e Event) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (event_id, aggregate_type, aggregate_id, type, payload, traceparent, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		e.EventID, e.AggregateType, e.AggregateID, e.Type, string(e.Payload), e.Traceparent, StatusPending)
	if err != nil {
		return fmt.Errorf("enqueue outbox event %s: %w", e.Type, err)
	}
	return nil
}

// LockBatch leases up to batchSize pending events to relayID. Rows leased by
// another relay are skipped until their lease expires.
func (s *PostgresStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE outbox
		 SET locked_by = $1,
		     locked_until = NOW() + ($3 * INTERVAL '1 millisecond')
		 WHERE id IN (
		     SELECT id FROM outbox
		     WHERE status = 'pending'
		       AND (locked_until IS NULL OR locked_until < NOW())
		     ORDER BY created_at, id
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED)
		 RETURNING id, event_id, aggregate_type, aggregate_id, type, payload, traceparent, status, retry_count, last_error, created_at`,
		relayID, batchSize, lease.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("lock outbox batch: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.AggregateType,
			&e.AggregateID,
			&e.Type,
			&e.Payload,
			&e.Traceparent,
			&e.Status,
			&e.RetryCount,
			&e.LastError,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	return events, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET status = 'sent', locked_by = NULL, locked_until = NULL
		 WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox events sent: %w", err)
	}
	return nil
}

// MarkFailed releases the lease and counts the attempt; after maxAttempts the
// event is parked as failed.
func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET retry_count = retry_count + 1,
		     last_error = $2,
		     locked_by = NULL,
		     locked_until = NULL,
		     status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		 WHERE id = $1`,
		id, errMsg, maxAttempts)
	if err != nil {
		return fmt.Errorf("mark outbox event %d failed: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox events: %w", err)
	}
	return n, nil
}
