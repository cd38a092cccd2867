package enums

import "fmt"

// OutboxAggregateType identifies which entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateBooking OutboxAggregateType = "booking"
	AggregatePayment OutboxAggregateType = "payment"
	AggregatePayout  OutboxAggregateType = "payout"
	AggregateDispute OutboxAggregateType = "dispute"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregatePayment,
	AggregatePayout,
	AggregateDispute,
}

// IsValid reports whether the value matches the canonical aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain events the lifecycle services emit.
type OutboxEventType string

const (
	EventBookingCreated       OutboxEventType = "booking_created"
	EventBookingStatusChanged OutboxEventType = "booking_status_changed"
	EventPaymentCompleted     OutboxEventType = "payment_completed"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRefunded      OutboxEventType = "payment_refunded"
	EventPayoutCreated        OutboxEventType = "payout_created"
	EventPayoutPaid           OutboxEventType = "payout_paid"
	EventDisputeOpened        OutboxEventType = "dispute_opened"
	EventDisputeResolved      OutboxEventType = "dispute_resolved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingStatusChanged,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventPayoutCreated,
	EventPayoutPaid,
	EventDisputeOpened,
	EventDisputeResolved,
}

// IsValid reports whether the value matches the canonical event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
