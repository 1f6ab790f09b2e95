package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.Database.MaxRetries)
	}
	if cfg.Kafka.StockTopic != "inventory.stock" {
		t.Errorf("Unexpected stock topic %q", cfg.Kafka.StockTopic)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("OUTBOX_INTERVAL", "2s")
	t.Setenv("OUTBOX_RELAY_ENABLED", "false")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Outbox.Interval != 2*time.Second {
		t.Errorf("Expected 2s interval, got %s", cfg.Outbox.Interval)
	}
	if cfg.Outbox.Enabled {
		t.Error("Outbox relay should be disabled")
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Invalid int should fall back to default, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestValidateRequiresBrokersForRelay(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Outbox:   OutboxConfig{Enabled: true, BatchSize: 10},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error without brokers")
	}

	cfg.Outbox.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected error with relay disabled: %v", err)
	}
}
