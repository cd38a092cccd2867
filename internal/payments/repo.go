package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// PayoutListFilter narrows payout listings. Nil fields are not applied.
type PayoutListFilter struct {
	TutorID *uuid.UUID
	Status  *enums.PayoutStatus
	Limit   int
	Offset  int
}

// Repository persists payments and payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	MarkPaymentCompleted(ctx context.Context, id uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkPaymentRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64) error

	CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindPayoutByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payout, error)
	ListPayouts(ctx context.Context, filter PayoutListFilter) ([]models.Payout, error)
	ListReleasablePayouts(ctx context.Context, asOf time.Time, limit int) ([]models.Payout, error)
	MarkPayoutPaid(ctx context.Context, id uuid.UUID, transferID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("gateway_intent_id = ?", intentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) MarkPaymentCompleted(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       enums.PaymentStatusCompleted,
			"completed_at": time.Now().UTC(),
		}).Error
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) error {
	updates := map[string]interface{}{
		"status": enums.PaymentStatusFailed,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) MarkPaymentRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              enums.PaymentStatusRefunded,
			"gateway_refund_id":   refundID,
			"refund_amount_cents": amountCents,
			"refunded_at":         time.Now().UTC(),
		}).Error
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *repository) FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindPayoutByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListPayouts(ctx context.Context, filter PayoutListFilter) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).Model(&models.Payout{})
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

	var rows []models.Payout
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListReleasablePayouts(ctx context.Context, asOf time.Time, limit int) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutStatusPending).
		Where("hold_until <= ?", asOf).
		Order("hold_until ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.Payout
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) MarkPayoutPaid(ctx context.Context, id uuid.UUID, transferID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":              enums.PayoutStatusPaid,
			"gateway_transfer_id": transferID,
			"paid_at":             time.Now().UTC(),
		}).Error
}
