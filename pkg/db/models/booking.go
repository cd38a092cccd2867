package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// Booking is a single tutoring session reserved by a student against a
// tutor's calendar. StartAt/EndAt are stored in UTC.
type Booking struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StudentID     uuid.UUID                  `gorm:"column:student_id;type:uuid;not null;index"`
	TutorID       uuid.UUID                  `gorm:"column:tutor_id;type:uuid;not null;index"`
	SubjectID     uuid.UUID                  `gorm:"column:subject_id;type:uuid;not null"`
	StartAt       time.Time                  `gorm:"column:start_at;type:timestamptz;not null"`
	EndAt         time.Time                  `gorm:"column:end_at;type:timestamptz;not null"`
	Status        enums.BookingStatus        `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	PaymentStatus enums.BookingPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	PriceCents    int64                      `gorm:"column:price_cents;not null"`
	Currency      enums.Currency             `gorm:"column:currency;type:text;not null;default:'usd'"`
	MeetingLink   *string                    `gorm:"column:meeting_link;type:text"`
	StatusReason  *string                    `gorm:"column:status_reason;type:text"`
	ConfirmedAt   *time.Time                 `gorm:"column:confirmed_at;type:timestamptz"`
	CompletedAt   *time.Time                 `gorm:"column:completed_at;type:timestamptz"`
	CancelledAt   *time.Time                 `gorm:"column:cancelled_at;type:timestamptz"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
