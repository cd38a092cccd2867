package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// Payout is the tutor's share of a completed payment. HoldUntil gates when
// the transfer may be executed.
type Payout struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID         uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;uniqueIndex"`
	TutorID           uuid.UUID          `gorm:"column:tutor_id;type:uuid;not null;index"`
	AmountCents       int64              `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency     `gorm:"column:currency;type:text;not null;default:'usd'"`
	Status            enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	HoldUntil         time.Time          `gorm:"column:hold_until;type:timestamptz;not null;index"`
	GatewayTransferID *string            `gorm:"column:gateway_transfer_id;type:text"`
	PaidAt            *time.Time         `gorm:"column:paid_at;type:timestamptz"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
