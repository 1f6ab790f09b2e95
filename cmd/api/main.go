package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/safar/storefront/internal/cache"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/httpapi"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/observability"
	"github.com/safar/storefront/internal/outbox"
	"github.com/safar/storefront/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.Telemetry)
	if err != nil {
		logger.Fatal("setup tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	store.OrderTxOptions.MaxRetries = cfg.Database.MaxRetries

	rdb := cache.NewClient(cfg.Redis.Addr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, caches will miss", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	events := outbox.NewPostgresStore(db)
	engine := inventory.NewEngine(logger.Named("inventory"),
		inventory.WithCartLines(store.CartLines{}),
		inventory.WithEventSink(events),
	)

	if cfg.Outbox.Enabled {
		writer := outbox.NewKafkaWriter(cfg.Kafka.Brokers)
		defer writer.Close()

		relay := outbox.NewRelay(logger.Named("outbox"), events,
			outbox.NewDispatcher(logger.Named("outbox"), writer, cfg.Kafka.StockTopic),
			outbox.RelayConfig{
				RelayID:   cfg.Outbox.RelayID,
				BatchSize: cfg.Outbox.BatchSize,
				Interval:  cfg.Outbox.Interval,
				Lease:     cfg.Outbox.Lease,
			})
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("outbox relay stopped", zap.Error(err))
			}
		}()
	}

	router := httpapi.NewRouter(&httpapi.Server{
		DB:          db,
		Engine:      engine,
		Statuses:    cache.NewStatusCache(rdb, cfg.Redis.StatusCacheTTL),
		Idempotency: cache.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL),
		Logger:      logger.Named("http"),
	}, cfg.Server.RequestTimeout)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
