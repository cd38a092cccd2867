package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// ListFilter narrows booking listings. Nil fields are not applied.
type ListFilter struct {
	StudentID *uuid.UUID
	TutorID   *uuid.UUID
	Status    *enums.BookingStatus
	Limit     int
	Offset    int
}

// Repository exposes booking persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, filter ListFilter) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus, reason *string) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status enums.BookingPaymentStatus) error
	SetMeetingLink(ctx context.Context, id uuid.UUID, link string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Booking, error) {
	query := r.db.WithContext(ctx).Model(&models.Booking{})
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.TutorID != nil {
		query = query.Where("tutor_id = ?", *filter.TutorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []models.Booking
	err := query.Order("start_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus, reason *string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        status,
		"status_reason": reason,
	}
	switch status {
	case enums.BookingStatusConfirmed:
		updates["confirmed_at"] = now
	case enums.BookingStatusCompleted:
		updates["completed_at"] = now
	case enums.BookingStatusCancelled:
		updates["cancelled_at"] = now
	}
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status enums.BookingPaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

func (r *repository) SetMeetingLink(ctx context.Context, id uuid.UUID, link string) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("meeting_link", link).Error
}
