package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// BookingCreatedEvent signals a new booking awaiting payment.
type BookingCreatedEvent struct {
	BookingID  uuid.UUID `json:"bookingId"`
	StudentID  uuid.UUID `json:"studentId"`
	TutorID    uuid.UUID `json:"tutorId"`
	SubjectID  uuid.UUID `json:"subjectId"`
	StartAt    time.Time `json:"startAt"`
	EndAt      time.Time `json:"endAt"`
	PriceCents int64     `json:"priceCents"`
	Currency   string    `json:"currency"`
}

// BookingStatusChangedEvent is emitted on every booking lifecycle transition.
type BookingStatusChangedEvent struct {
	BookingID uuid.UUID           `json:"bookingId"`
	StudentID uuid.UUID           `json:"studentId"`
	TutorID   uuid.UUID           `json:"tutorId"`
	OldStatus enums.BookingStatus `json:"oldStatus"`
	NewStatus enums.BookingStatus `json:"newStatus"`
	ActorRole enums.ActorRole     `json:"actorRole"`
	Reason    string              `json:"reason,omitempty"`
}

// PaymentCompletedEvent reports a confirmed charge.
type PaymentCompletedEvent struct {
	PaymentID        uuid.UUID `json:"paymentId"`
	BookingID        uuid.UUID `json:"bookingId"`
	StudentID        uuid.UUID `json:"studentId"`
	TutorID          uuid.UUID `json:"tutorId"`
	AmountCents      int64     `json:"amountCents"`
	PlatformFeeCents int64     `json:"platformFeeCents"`
	TutorAmountCents int64     `json:"tutorAmountCents"`
	Currency         string    `json:"currency"`
}

// PaymentFailedEvent reports a charge the gateway declined.
type PaymentFailedEvent struct {
	PaymentID uuid.UUID `json:"paymentId"`
	BookingID uuid.UUID `json:"bookingId"`
	StudentID uuid.UUID `json:"studentId"`
	TutorID   uuid.UUID `json:"tutorId"`
	Reason    string    `json:"reason,omitempty"`
}

// PaymentRefundedEvent reports money returned to the student.
type PaymentRefundedEvent struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	BookingID   uuid.UUID `json:"bookingId"`
	StudentID   uuid.UUID `json:"studentId"`
	TutorID     uuid.UUID `json:"tutorId"`
	AmountCents int64     `json:"amountCents"`
	RefundedAt  time.Time `json:"refundedAt"`
}

// PayoutCreatedEvent signals the tutor's share entered the hold window.
type PayoutCreatedEvent struct {
	PayoutID    uuid.UUID `json:"payoutId"`
	PaymentID   uuid.UUID `json:"paymentId"`
	TutorID     uuid.UUID `json:"tutorId"`
	AmountCents int64     `json:"amountCents"`
	HoldUntil   time.Time `json:"holdUntil"`
}

// PayoutPaidEvent reports the transfer to the tutor succeeded.
type PayoutPaidEvent struct {
	PayoutID    uuid.UUID `json:"payoutId"`
	PaymentID   uuid.UUID `json:"paymentId"`
	TutorID     uuid.UUID `json:"tutorId"`
	AmountCents int64     `json:"amountCents"`
	PaidAt      time.Time `json:"paidAt"`
}

// DisputeOpenedEvent signals a payment is now contested.
type DisputeOpenedEvent struct {
	DisputeID    uuid.UUID       `json:"disputeId"`
	PaymentID    uuid.UUID       `json:"paymentId"`
	BookingID    uuid.UUID       `json:"bookingId"`
	StudentID    uuid.UUID       `json:"studentId"`
	TutorID      uuid.UUID       `json:"tutorId"`
	RaisedByID   uuid.UUID       `json:"raisedById"`
	RaisedByRole enums.ActorRole `json:"raisedByRole"`
	Reason       string          `json:"reason"`
}

// DisputeResolvedEvent carries the admin's verdict.
type DisputeResolvedEvent struct {
	DisputeID  uuid.UUID               `json:"disputeId"`
	PaymentID  uuid.UUID               `json:"paymentId"`
	BookingID  uuid.UUID               `json:"bookingId"`
	StudentID  uuid.UUID               `json:"studentId"`
	TutorID    uuid.UUID               `json:"tutorId"`
	Resolution enums.DisputeResolution `json:"resolution"`
	ResolvedAt time.Time               `json:"resolvedAt"`
}
