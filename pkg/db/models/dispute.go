package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// Dispute tracks a disagreement raised against a payment. At most one
// dispute per payment may be open or under review at a time.
type Dispute struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID    uuid.UUID                `gorm:"column:payment_id;type:uuid;not null;index"`
	BookingID    uuid.UUID                `gorm:"column:booking_id;type:uuid;not null;index"`
	RaisedByID   uuid.UUID                `gorm:"column:raised_by_id;type:uuid;not null"`
	RaisedByRole enums.ActorRole          `gorm:"column:raised_by_role;type:text;not null"`
	Reason       string                   `gorm:"column:reason;type:text;not null"`
	Description  *string                  `gorm:"column:description;type:text"`
	Status       enums.DisputeStatus      `gorm:"column:status;type:text;not null;default:'open'"`
	Resolution   *enums.DisputeResolution `gorm:"column:resolution;type:text"`
	AdminNotes   *string                  `gorm:"column:admin_notes;type:text"`
	ResolvedByID *uuid.UUID               `gorm:"column:resolved_by_id;type:uuid"`
	ResolvedAt   *time.Time               `gorm:"column:resolved_at;type:timestamptz"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
