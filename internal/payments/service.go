package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/metrics"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

// localIntentPrefix marks payment attempts recorded while the gateway was
// unreachable. These intents only exist in our database.
const localIntentPrefix = "local-"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type bookingStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// bookingLifecycle is the slice of the booking service the orchestrator
// drives when money moves.
type bookingLifecycle interface {
	ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, actor *outbox.ActorRef) (*models.Booking, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Booking, error)
}

// CreateIntentInput identifies the booking being paid for.
type CreateIntentInput struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// IntentOutput is the client-facing payment handle.
type IntentOutput struct {
	PaymentID    uuid.UUID
	IntentID     string
	ClientSecret string
	Status       enums.PaymentStatus
}

// ProcessPayoutInput carries a payout release request.
type ProcessPayoutInput struct {
	PayoutID      uuid.UUID
	ActorID       uuid.UUID
	ActorRole     enums.ActorRole
	AdminOverride bool
	Destination   string
}

// RefundInput carries a refund request. Nil AmountCents means a full refund.
type RefundInput struct {
	PaymentID   uuid.UUID
	AmountCents *int64
	Reason      string
	Actor       *outbox.ActorRef
}

// ListPayoutsInput scopes payout listings to the requesting actor.
type ListPayoutsInput struct {
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Status    *enums.PayoutStatus
	Limit     int
	Offset    int
}

// Service orchestrates payments, payouts and refunds around the booking
// lifecycle.
type Service interface {
	CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*IntentOutput, error)
	ConfirmPayment(ctx context.Context, gatewayIntentID string, actor *outbox.ActorRef) (*models.Payment, error)
	FailPayment(ctx context.Context, gatewayIntentID, reason string, actor *outbox.ActorRef) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	ProcessPayout(ctx context.Context, input ProcessPayoutInput) (*models.Payout, error)
	ListPayouts(ctx context.Context, input ListPayoutsInput) ([]models.Payout, error)
	ProcessRefund(ctx context.Context, input RefundInput) (*models.Payment, error)
}

type service struct {
	repo     Repository
	bookings bookingStore
	life     bookingLifecycle
	gateway  Gateway
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.LifecycleMetrics
	cfg      config.MarketplaceConfig
	logg     *logger.Logger
}

// NewService builds the payment orchestrator. The gateway may be nil in
// degraded environments; intents are then recorded locally only.
func NewService(
	repo Repository,
	bookingsRepo bookingStore,
	life bookingLifecycle,
	gateway Gateway,
	tx txRunner,
	outboxSvc outboxPublisher,
	lifecycleMetrics *metrics.LifecycleMetrics,
	cfg config.MarketplaceConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if bookingsRepo == nil {
		return nil, fmt.Errorf("bookings reader required")
	}
	if life == nil {
		return nil, fmt.Errorf("booking lifecycle required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		bookings: bookingsRepo,
		life:     life,
		gateway:  gateway,
		tx:       tx,
		outbox:   outboxSvc,
		metrics:  lifecycleMetrics,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

func (s *service) CreatePaymentIntent(ctx context.Context, input CreateIntentInput) (*IntentOutput, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	booking, err := s.bookings.FindByID(ctx, input.BookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if input.ActorRole != enums.ActorRoleAdmin && booking.StudentID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to student")
	}
	if booking.Status != enums.BookingStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not awaiting payment").
			WithDetails(map[string]string{"status": booking.Status.String()})
	}

	// One payment per booking: hand back the existing pending intent instead
	// of charging twice.
	if existing, err := s.repo.FindPaymentByBookingID(ctx, input.BookingID); err == nil {
		if existing.Status != enums.PaymentStatusPending && existing.Status != enums.PaymentStatusFailed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already has a settled payment")
		}
		return &IntentOutput{
			PaymentID: existing.ID,
			IntentID:  existing.GatewayIntentID,
			Status:    existing.Status,
		}, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	feeCents, tutorCents := SplitAmount(booking.PriceCents, s.cfg.PlatformFeePercent)

	intentID := localIntentPrefix + uuid.New().String()
	clientSecret := ""
	if s.gateway != nil {
		result, err := s.gateway.CreateIntent(ctx, booking.PriceCents, booking.Currency, map[string]string{
			"booking_id": booking.ID.String(),
			"student_id": booking.StudentID.String(),
			"tutor_id":   booking.TutorID.String(),
		})
		if err != nil {
			// The attempt is still recorded; the client can retry
			// confirmation once the gateway recovers.
			s.logg.Warn(s.logg.WithBookingID(ctx, booking.ID.String()), "gateway intent creation failed, recording local intent")
		} else {
			intentID = result.IntentID
			clientSecret = result.ClientSecret
		}
	}

	payment := &models.Payment{
		BookingID:        booking.ID,
		StudentID:        booking.StudentID,
		TutorID:          booking.TutorID,
		AmountCents:      booking.PriceCents,
		PlatformFeeCents: feeCents,
		TutorAmountCents: tutorCents,
		Currency:         booking.Currency,
		Status:           enums.PaymentStatusPending,
		GatewayIntentID:  intentID,
	}
	created, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	return &IntentOutput{
		PaymentID:    created.ID,
		IntentID:     created.GatewayIntentID,
		ClientSecret: clientSecret,
		Status:       created.Status,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, gatewayIntentID string, actor *outbox.ActorRef) (*models.Payment, error) {
	if gatewayIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway intent id required")
	}

	payment, err := s.repo.FindPaymentByIntentID(ctx, gatewayIntentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	// Re-confirming a completed payment is a no-op success.
	if payment.Status == enums.PaymentStatusCompleted {
		return payment, nil
	}
	if payment.Status == enums.PaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already refunded")
	}

	if strings.HasPrefix(gatewayIntentID, localIntentPrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "intent was recorded while the gateway was unreachable and cannot be confirmed")
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	status, err := s.gateway.IntentStatus(ctx, gatewayIntentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query gateway intent")
	}

	if !status.Succeeded {
		return s.failPayment(ctx, payment, fmt.Sprintf("gateway status %s", status.Status), actor)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkPaymentCompleted(ctx, payment.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
		}

		if _, err := s.life.ConfirmPaid(ctx, tx, payment.BookingID, actor); err != nil {
			return err
		}

		// The payout may already exist if a webhook and the client confirm
		// the same intent concurrently.
		payout, err := repo.FindPayoutByPaymentID(ctx, payment.ID)
		if err == gorm.ErrRecordNotFound {
			payout = &models.Payout{
				PaymentID:   payment.ID,
				TutorID:     payment.TutorID,
				AmountCents: payment.TutorAmountCents,
				Currency:    payment.Currency,
				Status:      enums.PayoutStatusPending,
				HoldUntil:   time.Now().UTC().Add(s.cfg.PayoutHold()),
			}
			if payout, err = repo.CreatePayout(ctx, payout); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
			}
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}

		completed := outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PaymentCompletedEvent{
				PaymentID:        payment.ID,
				BookingID:        payment.BookingID,
				StudentID:        payment.StudentID,
				TutorID:          payment.TutorID,
				AmountCents:      payment.AmountCents,
				PlatformFeeCents: payment.PlatformFeeCents,
				TutorAmountCents: payment.TutorAmountCents,
				Currency:         payment.Currency.String(),
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, completed); err != nil {
			return err
		}

		created := outbox.DomainEvent{
			EventType:     enums.EventPayoutCreated,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PayoutCreatedEvent{
				PayoutID:    payout.ID,
				PaymentID:   payout.PaymentID,
				TutorID:     payout.TutorID,
				AmountCents: payout.AmountCents,
				HoldUntil:   payout.HoldUntil,
			},
		}
		return s.outbox.Emit(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentOutcome(enums.PaymentStatusCompleted.String())
	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &now
	return payment, nil
}

// FailPayment records a gateway-reported failure for an intent. The booking
// stays in pending_payment so the student can retry.
func (s *service) FailPayment(ctx context.Context, gatewayIntentID, reason string, actor *outbox.ActorRef) (*models.Payment, error) {
	if gatewayIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway intent id required")
	}
	payment, err := s.repo.FindPaymentByIntentID(ctx, gatewayIntentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusCompleted || payment.Status == enums.PaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled")
	}
	return s.failPayment(ctx, payment, reason, actor)
}

func (s *service) failPayment(ctx context.Context, payment *models.Payment, reason string, actor *outbox.ActorRef) (*models.Payment, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkPaymentFailed(ctx, payment.ID, reason); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PaymentFailedEvent{
				PaymentID: payment.ID,
				BookingID: payment.BookingID,
				StudentID: payment.StudentID,
				TutorID:   payment.TutorID,
				Reason:    reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentOutcome(enums.PaymentStatusFailed.String())
	payment.Status = enums.PaymentStatusFailed
	if reason != "" {
		payment.FailureReason = &reason
	}
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) ProcessPayout(ctx context.Context, input ProcessPayoutInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.ActorRole != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may process payouts")
	}
	if input.Destination == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout destination required")
	}

	payout, err := s.repo.FindPayoutByID(ctx, input.PayoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	if payout.Status == enums.PayoutStatusPaid {
		return payout, nil
	}

	now := time.Now().UTC()
	if now.Before(payout.HoldUntil) && !input.AdminOverride {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout is still on hold").
			WithDetails(map[string]string{"holdUntil": payout.HoldUntil.Format(time.RFC3339)})
	}

	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	transfer, err := s.gateway.CreateTransfer(ctx, payout.AmountCents, payout.Currency, input.Destination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkPayoutPaid(ctx, payout.ID, transfer.TransferID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutPaid,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: payloads.PayoutPaidEvent{
				PayoutID:    payout.ID,
				PaymentID:   payout.PaymentID,
				TutorID:     payout.TutorID,
				AmountCents: payout.AmountCents,
				PaidAt:      now,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	payout.Status = enums.PayoutStatusPaid
	payout.GatewayTransferID = &transfer.TransferID
	payout.PaidAt = &now
	return payout, nil
}

func (s *service) ListPayouts(ctx context.Context, input ListPayoutsInput) ([]models.Payout, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	filter := PayoutListFilter{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	switch input.ActorRole {
	case enums.ActorRoleTutor:
		filter.TutorID = &input.ActorID
	case enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payouts are visible to tutors and admins only")
	}
	rows, err := s.repo.ListPayouts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return rows, nil
}

func (s *service) ProcessRefund(ctx context.Context, input RefundInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.repo.FindPaymentByID(ctx, input.PaymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusRefunded {
		return payment, nil
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded").
			WithDetails(map[string]string{"status": payment.Status.String()})
	}

	amount := payment.AmountCents
	if input.AmountCents != nil {
		amount = *input.AmountCents
	}
	if amount <= 0 || amount > payment.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount out of range")
	}

	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	refund, err := s.gateway.CreateRefund(ctx, payment.GatewayIntentID, amount, input.Reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkPaymentRefunded(ctx, payment.ID, refund.RefundID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
		}

		if _, err := s.life.MarkRefunded(ctx, tx, payment.BookingID, input.Reason, input.Actor); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.PaymentRefundedEvent{
				PaymentID:   payment.ID,
				BookingID:   payment.BookingID,
				StudentID:   payment.StudentID,
				TutorID:     payment.TutorID,
				AmountCents: amount,
				RefundedAt:  time.Now().UTC(),
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentOutcome(enums.PaymentStatusRefunded.String())
	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusRefunded
	payment.GatewayRefundID = &refund.RefundID
	payment.RefundAmountCents = &amount
	payment.RefundedAt = &now
	return payment, nil
}
