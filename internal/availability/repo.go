package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// Repository exposes availability block and booking window reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBlock(ctx context.Context, block *models.AvailabilityBlock) (*models.AvailabilityBlock, error)
	FindBlockByID(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error)
	ListBlocksByTutor(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilityBlock, error)
	ListBlocksByTutorDay(ctx context.Context, tutorID uuid.UUID, dayOfWeek int) ([]models.AvailabilityBlock, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	ListActiveBookingsInRange(ctx context.Context, tutorID uuid.UUID, from, to time.Time) ([]models.Booking, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an availability repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBlock(ctx context.Context, block *models.AvailabilityBlock) (*models.AvailabilityBlock, error) {
	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		return nil, err
	}
	return block, nil
}

func (r *repository) FindBlockByID(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	var block models.AvailabilityBlock
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

func (r *repository) ListBlocksByTutor(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilityBlock, error) {
	var rows []models.AvailabilityBlock
	err := r.db.WithContext(ctx).
		Where("tutor_id = ?", tutorID).
		Order("day_of_week ASC").
		Order("start_minute ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListBlocksByTutorDay(ctx context.Context, tutorID uuid.UUID, dayOfWeek int) ([]models.AvailabilityBlock, error) {
	var rows []models.AvailabilityBlock
	err := r.db.WithContext(ctx).
		Where("tutor_id = ? AND day_of_week = ?", tutorID, dayOfWeek).
		Order("start_minute ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AvailabilityBlock{}).Error
}

func (r *repository) ListActiveBookingsInRange(ctx context.Context, tutorID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("tutor_id = ?", tutorID).
		Where("status NOT IN ?", []enums.BookingStatus{enums.BookingStatusCancelled, enums.BookingStatusRefunded}).
		Where("start_at < ? AND end_at > ?", to, from).
		Order("start_at ASC").
		Find(&rows).Error
	return rows, err
}
