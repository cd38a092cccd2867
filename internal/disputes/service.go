package disputes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/internal/payments"
	dbpkg "github.com/tutorlink/tutorlink-backend/pkg/db"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentStore interface {
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// refundProcessor is the slice of the payment orchestrator a winning
// student dispute drives.
type refundProcessor interface {
	ProcessRefund(ctx context.Context, input payments.RefundInput) (*models.Payment, error)
}

// OpenDisputeInput carries a student-initiated dispute.
type OpenDisputeInput struct {
	PaymentID   uuid.UUID
	ActorID     uuid.UUID
	ActorRole   enums.ActorRole
	Reason      string
	Description *string
}

// ResolveInput carries an admin verdict on a dispute.
type ResolveInput struct {
	DisputeID  uuid.UUID
	Resolution enums.DisputeResolution
	AdminNotes *string
	ActorID    uuid.UUID
	ActorRole  enums.ActorRole
}

// ListInput scopes dispute listings to the requesting actor.
type ListInput struct {
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Status    *enums.DisputeStatus
	Limit     int
	Offset    int
}

// Service owns the dispute pipeline. At most one dispute per payment may be
// open or under review; a resolved student win refunds the payment.
type Service interface {
	OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error)
	OpenChargeback(ctx context.Context, paymentID uuid.UUID, gatewayReason string) (*models.Dispute, error)
	GetDispute(ctx context.Context, disputeID, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error)
	ListDisputes(ctx context.Context, input ListInput) ([]models.Dispute, error)
	UpdateStatus(ctx context.Context, disputeID uuid.UUID, newStatus enums.DisputeStatus, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
}

type service struct {
	repo     Repository
	payments paymentStore
	refunds  refundProcessor
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds the dispute resolver.
func NewService(
	repo Repository,
	paymentsRepo paymentStore,
	refunds refundProcessor,
	tx txRunner,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if paymentsRepo == nil {
		return nil, fmt.Errorf("payments reader required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund processor required")
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
		payments: paymentsRepo,
		refunds:  refunds,
		tx:       tx,
		outbox:   outboxSvc,
		logg:     logg,
	}, nil
}

func (s *service) OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	payment, err := s.loadPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if input.ActorRole != enums.ActorRoleAdmin && payment.StudentID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to student")
	}

	return s.open(ctx, payment, &models.Dispute{
		PaymentID:    payment.ID,
		BookingID:    payment.BookingID,
		RaisedByID:   input.ActorID,
		RaisedByRole: input.ActorRole,
		Reason:       input.Reason,
		Description:  input.Description,
		Status:       enums.DisputeStatusOpen,
	})
}

// OpenChargeback records a gateway-reported chargeback as a dispute. The
// same one-open-dispute-per-payment rule applies.
func (s *service) OpenChargeback(ctx context.Context, paymentID uuid.UUID, gatewayReason string) (*models.Dispute, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	reason := "gateway chargeback"
	if gatewayReason != "" {
		reason = fmt.Sprintf("gateway chargeback: %s", gatewayReason)
	}
	return s.open(ctx, payment, &models.Dispute{
		PaymentID:    payment.ID,
		BookingID:    payment.BookingID,
		RaisedByID:   payment.StudentID,
		RaisedByRole: enums.ActorRoleStudent,
		Reason:       reason,
		Status:       enums.DisputeStatusOpen,
	})
}

func (s *service) loadPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.FindPaymentByID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be disputed").
			WithDetails(map[string]string{"status": payment.Status.String()})
	}
	return payment, nil
}

func (s *service) open(ctx context.Context, payment *models.Payment, dispute *models.Dispute) (*models.Dispute, error) {
	if existing, err := s.repo.FindOpenByPaymentID(ctx, payment.ID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a dispute is already open for this payment").
			WithDetails(map[string]string{"disputeId": existing.ID.String()})
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open disputes")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).Create(ctx, dispute)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_disputes_open_payment") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a dispute is already open for this payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}
		dispute = created

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: dispute.RaisedByID, Role: dispute.RaisedByRole},
			Data: payloads.DisputeOpenedEvent{
				DisputeID:    dispute.ID,
				PaymentID:    dispute.PaymentID,
				BookingID:    dispute.BookingID,
				StudentID:    payment.StudentID,
				TutorID:      payment.TutorID,
				RaisedByID:   dispute.RaisedByID,
				RaisedByRole: dispute.RaisedByRole,
				Reason:       dispute.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) GetDispute(ctx context.Context, disputeID, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if role != enums.ActorRoleAdmin && dispute.RaisedByID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dispute does not belong to user")
	}
	return dispute, nil
}

func (s *service) ListDisputes(ctx context.Context, input ListInput) ([]models.Dispute, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	filter := ListFilter{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	switch input.ActorRole {
	case enums.ActorRoleStudent:
		filter.RaisedByID = &input.ActorID
	case enums.ActorRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "disputes are visible to students and admins only")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return rows, nil
}

func (s *service) UpdateStatus(ctx context.Context, disputeID uuid.UUID, newStatus enums.DisputeStatus, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may update disputes")
	}
	if !newStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute status")
	}
	if newStatus == enums.DisputeStatusResolved {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolving a dispute requires a resolution verdict")
	}

	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if !CanTransition(dispute.Status, newStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute status transition not allowed").
			WithDetails(map[string]string{
				"from": dispute.Status.String(),
				"to":   newStatus.String(),
			})
	}

	if err := s.repo.UpdateStatus(ctx, disputeID, newStatus); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update dispute status")
	}
	dispute.Status = newStatus
	return dispute, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if input.ActorRole != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may resolve disputes")
	}
	if !input.Resolution.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute resolution")
	}

	dispute, err := s.repo.FindByID(ctx, input.DisputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	if !CanTransition(dispute.Status, enums.DisputeStatusResolved) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute cannot be resolved in current state").
			WithDetails(map[string]string{"from": dispute.Status.String()})
	}

	payment, err := s.payments.FindPaymentByID(ctx, dispute.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Resolve(ctx, dispute.ID, enums.DisputeStatusResolved, input.Resolution, input.AdminNotes, input.ActorID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: payloads.DisputeResolvedEvent{
				DisputeID:  dispute.ID,
				PaymentID:  dispute.PaymentID,
				BookingID:  dispute.BookingID,
				StudentID:  payment.StudentID,
				TutorID:    payment.TutorID,
				Resolution: input.Resolution,
				ResolvedAt: now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	dispute.Status = enums.DisputeStatusResolved
	dispute.Resolution = &input.Resolution
	dispute.AdminNotes = input.AdminNotes
	dispute.ResolvedByID = &input.ActorID
	dispute.ResolvedAt = &now

	// A student win refunds the payment outside the dispute transaction;
	// if the gateway call fails the dispute stays resolved and the refund
	// can be retried against the payment directly.
	if input.Resolution == enums.DisputeResolutionStudentWins {
		_, err := s.refunds.ProcessRefund(ctx, payments.RefundInput{
			PaymentID: dispute.PaymentID,
			Reason:    "dispute resolved in student's favor",
			Actor:     &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
		})
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dispute_id", dispute.ID.String()), "refund after dispute resolution failed", err)
			return dispute, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process refund for resolved dispute")
		}
	}
	return dispute, nil
}
