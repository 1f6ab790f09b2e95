package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, maxAttempts int) error
}

type RelayConfig struct {
	RelayID     string
	BatchSize   int
	Interval    time.Duration
	Lease       time.Duration
	MaxAttempts int
}

type Relay struct {
	logger   *zap.Logger
	store    Store
	dispatch *Dispatcher
	cfg      RelayConfig
}

func NewRelay(logger *zap.Logger, store Store, dispatch *Dispatcher, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{logger: logger, store: store, dispatch: dispatch, cfg: cfg}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	r.logger.Info("outbox relay started", zap.String("relay_id", r.cfg.RelayID))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping", zap.String("relay_id", r.cfg.RelayID))
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("outbox relay batch failed", zap.Error(err))
			}
		}
	}
}

// RunOnce relays a single batch and returns how many events were sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.cfg.RelayID, r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error(), r.cfg.MaxAttempts); markErr != nil {
				r.logger.Error("outbox mark failed error", zap.Int64("outbox_id", e.ID), zap.Error(markErr))
			}
			continue
		}
		ids = append(ids, e.ID)
	}

	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			return 0, err
		}
	}

	return len(ids), nil
}
