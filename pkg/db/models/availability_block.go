package models

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityBlock is a weekly recurring window during which a tutor accepts
// bookings. Minutes are offsets from midnight UTC on the given weekday.
type AvailabilityBlock struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TutorID     uuid.UUID `gorm:"column:tutor_id;type:uuid;not null;index"`
	DayOfWeek   int       `gorm:"column:day_of_week;not null"`
	StartMinute int       `gorm:"column:start_minute;not null"`
	EndMinute   int       `gorm:"column:end_minute;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
