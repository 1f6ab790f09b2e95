package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	logger   *zap.Logger
	producer Producer
	topic    string
}

func NewDispatcher(logger *zap.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{logger: logger, producer: producer, topic: topic}
}

// NewKafkaWriter builds the writer used in production. Messages are keyed by
// aggregate id so events for one product stay ordered within a partition.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "event_id", Value: []byte(event.EventID.String())},
		{Key: "aggregate_type", Value: []byte(event.AggregateType)},
	}
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: TraceparentHeader, Value: []byte(event.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.logger.Error("outbox dispatch failed",
			zap.Int64("outbox_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return err
	}

	d.logger.Debug("outbox dispatched",
		zap.Int64("outbox_id", event.ID),
		zap.String("type", event.Type),
		zap.String("aggregate_id", event.AggregateID),
	)
	return nil
}
