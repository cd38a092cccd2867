package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// Payment records the money side of a booking. AmountCents is the gross
// charge, split into PlatformFeeCents and TutorAmountCents at creation.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID         uuid.UUID           `gorm:"column:booking_id;type:uuid;not null;uniqueIndex"`
	StudentID         uuid.UUID           `gorm:"column:student_id;type:uuid;not null;index"`
	TutorID           uuid.UUID           `gorm:"column:tutor_id;type:uuid;not null;index"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	PlatformFeeCents  int64               `gorm:"column:platform_fee_cents;not null"`
	TutorAmountCents  int64               `gorm:"column:tutor_amount_cents;not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayIntentID   string              `gorm:"column:gateway_intent_id;type:text;not null;index"`
	GatewayRefundID   *string             `gorm:"column:gateway_refund_id;type:text"`
	RefundAmountCents *int64              `gorm:"column:refund_amount_cents"`
	FailureReason     *string             `gorm:"column:failure_reason;type:text"`
	CompletedAt       *time.Time          `gorm:"column:completed_at;type:timestamptz"`
	RefundedAt        *time.Time          `gorm:"column:refunded_at;type:timestamptz"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
