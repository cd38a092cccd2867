package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "tl-domain-events"})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope := PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveBookingStatusChanged(t *testing.T) {
	reg := testRegistry(t)
	data := payloads.BookingStatusChangedEvent{
		BookingID: uuid.New(),
		OldStatus: enums.BookingStatusPendingPayment,
		NewStatus: enums.BookingStatusConfirmed,
		ActorRole: enums.ActorRoleStudent,
	}
	row := envelopeRow(t, enums.EventBookingStatusChanged, enums.AggregateBooking, data)

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	got, ok := resolved.Payload.(*payloads.BookingStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if got.NewStatus != enums.BookingStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.NewStatus)
	}
	if resolved.Descriptor.Topic != "tl-domain-events" {
		t.Fatalf("unexpected topic %s", resolved.Descriptor.Topic)
	}
}

func TestResolveUnknownEventType(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.OutboxEventType("bogus"), enums.AggregateBooking, map[string]string{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveAggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventPayoutPaid, enums.AggregateBooking, payloads.PayoutPaidEvent{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveEmptyPayload(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventDisputeOpened, enums.AggregateDispute, nil)

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
