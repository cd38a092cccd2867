package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// ListFilter narrows dispute listings. Nil fields are not applied.
type ListFilter struct {
	PaymentID  *uuid.UUID
	RaisedByID *uuid.UUID
	Status     *enums.DisputeStatus
	Limit      int
	Offset     int
}

// Repository persists disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindOpenByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, filter ListFilter) ([]models.Dispute, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DisputeStatus) error
	Resolve(ctx context.Context, id uuid.UUID, status enums.DisputeStatus, resolution enums.DisputeResolution, adminNotes *string, resolvedBy uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a disputes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error) {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		return nil, err
	}
	return dispute, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindOpenByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Where("status IN ?", []enums.DisputeStatus{enums.DisputeStatusOpen, enums.DisputeStatusUnderReview}).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Dispute, error) {
	query := r.db.WithContext(ctx).Model(&models.Dispute{})
	if filter.PaymentID != nil {
		query = query.Where("payment_id = ?", *filter.PaymentID)
	}
	if filter.RaisedByID != nil {
		query = query.Where("raised_by_id = ?", *filter.RaisedByID)
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

	var rows []models.Dispute
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DisputeStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, status enums.DisputeStatus, resolution enums.DisputeResolution, adminNotes *string, resolvedBy uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"resolution":     resolution,
			"admin_notes":    adminNotes,
			"resolved_by_id": resolvedBy,
			"resolved_at":    time.Now().UTC(),
		}).Error
}
