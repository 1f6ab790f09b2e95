package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

const TraceparentHeader = "traceparent"

type Event struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Traceparent   string
	Status        Status
	RetryCount    int
	LastError     *string
	CreatedAt     time.Time
}

// NewEvent marshals payload and captures the W3C traceparent of ctx so the
// relay can continue the trace when it publishes later.
func NewEvent(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	return Event{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		Traceparent:   carrier.Get(TraceparentHeader),
		Status:        StatusPending,
	}, nil
}
