package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/internal/availability"
	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/meet"
	"github.com/tutorlink/tutorlink-backend/pkg/metrics"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

// bookingLockTTL bounds how long a creation attempt may hold the per-slot
// lock before it expires on its own.
const bookingLockTTL = 15 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type availabilityChecker interface {
	CheckWindow(ctx context.Context, repo availability.Repository, tutorID uuid.UUID, startAt, endAt time.Time, excludeBookingID uuid.UUID) error
}

type slotLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	BookingLockKey(tutorID, windowStart string) string
}

// meetingRooms provisions video rooms for confirmed sessions. Optional.
type meetingRooms interface {
	CreateRoom(ctx context.Context, req meet.RoomRequest) (*meet.Room, error)
}

// CreateBookingInput carries everything needed to reserve a session.
type CreateBookingInput struct {
	StudentID  uuid.UUID
	TutorID    uuid.UUID
	SubjectID  uuid.UUID
	StartAt    time.Time
	EndAt      time.Time
	PriceCents int64
	Currency   enums.Currency
}

// TransitionInput carries a caller-requested status change.
type TransitionInput struct {
	BookingID uuid.UUID
	NewStatus enums.BookingStatus
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Reason    *string
}

// ListInput scopes a booking listing to the requesting actor.
type ListInput struct {
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Status    *enums.BookingStatus
	Limit     int
	Offset    int
}

// Service owns the booking lifecycle: creation gated by availability, and
// every status transition afterwards.
type Service interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role enums.ActorRole) (*models.Booking, error)
	ListBookings(ctx context.Context, input ListInput) ([]models.Booking, error)
	TransitionStatus(ctx context.Context, input TransitionInput) (*models.Booking, error)

	// ConfirmPaid and MarkRefunded run inside a caller-owned transaction;
	// the payment flow drives them.
	ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, actor *outbox.ActorRef) (*models.Booking, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Booking, error)
}

type service struct {
	repo      Repository
	availRepo availability.Repository
	avail     availabilityChecker
	tx        txRunner
	outbox    outboxPublisher
	locks     slotLocker
	rooms     meetingRooms
	metrics   *metrics.LifecycleMetrics
	cfg       config.MarketplaceConfig
	logg      *logger.Logger
}

// NewService builds the booking lifecycle service. The rooms dependency is
// optional; everything else is required.
func NewService(
	repo Repository,
	availRepo availability.Repository,
	avail availabilityChecker,
	tx txRunner,
	outboxSvc outboxPublisher,
	locks slotLocker,
	rooms meetingRooms,
	lifecycleMetrics *metrics.LifecycleMetrics,
	cfg config.MarketplaceConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if availRepo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	if avail == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if locks == nil {
		return nil, fmt.Errorf("slot locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		availRepo: availRepo,
		avail:     avail,
		tx:        tx,
		outbox:    outboxSvc,
		locks:     locks,
		rooms:     rooms,
		metrics:   lifecycleMetrics,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if input.StudentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "student identity missing")
	}
	if input.TutorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tutor id required")
	}
	if input.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id required")
	}
	if input.StudentID == input.TutorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "students cannot book themselves")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	startAt := input.StartAt.UTC()
	endAt := input.EndAt.UTC()
	if !startAt.Before(endAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session must end after it starts")
	}
	if !startAt.After(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session must start in the future")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	// A short-lived lock keyed on (tutor, window start) serializes concurrent
	// creation attempts for the same slot; the in-transaction recheck below
	// still decides correctness if the lock expires early.
	lockKey := s.locks.BookingLockKey(input.TutorID.String(), startAt.Format(time.RFC3339))
	acquired, err := s.locks.SetNX(ctx, lockKey, input.StudentID.String(), bookingLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire booking lock")
	}
	if !acquired {
		s.metrics.IncConflictRejection()
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another booking for this slot is in progress")
	}
	defer func() {
		if err := s.locks.Del(ctx, lockKey); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "lock_key", lockKey), "release booking lock failed")
		}
	}()

	if err := s.avail.CheckWindow(ctx, nil, input.TutorID, startAt, endAt, uuid.Nil); err != nil {
		s.countConflict(err)
		return nil, err
	}

	booking := &models.Booking{
		StudentID:     input.StudentID,
		TutorID:       input.TutorID,
		SubjectID:     input.SubjectID,
		StartAt:       startAt,
		EndAt:         endAt,
		Status:        enums.BookingStatusPendingPayment,
		PaymentStatus: enums.BookingPaymentStatusUnpaid,
		PriceCents:    input.PriceCents,
		Currency:      currency,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Recheck with transactional visibility so a booking committed after
		// the first check cannot slip through.
		if err := s.avail.CheckWindow(ctx, s.availRepo.WithTx(tx), input.TutorID, startAt, endAt, uuid.Nil); err != nil {
			s.countConflict(err)
			return err
		}

		created, err := s.repo.WithTx(tx).Create(ctx, booking)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}
		booking = created

		event := outbox.DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.StudentID, Role: enums.ActorRoleStudent},
			Data: payloads.BookingCreatedEvent{
				BookingID:  booking.ID,
				StudentID:  booking.StudentID,
				TutorID:    booking.TutorID,
				SubjectID:  booking.SubjectID,
				StartAt:    booking.StartAt,
				EndAt:      booking.EndAt,
				PriceCents: booking.PriceCents,
				Currency:   booking.Currency.String(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.attachMeetingRoom(ctx, booking)
	return booking, nil
}

// attachMeetingRoom provisions a video room after the booking is committed.
// Provider failures are logged and swallowed; the booking stands without a
// link and the room can be re-provisioned later.
func (s *service) attachMeetingRoom(ctx context.Context, booking *models.Booking) {
	if s.rooms == nil {
		return
	}
	room, err := s.rooms.CreateRoom(ctx, meet.RoomRequest{
		Name:     fmt.Sprintf("session-%s", booking.ID),
		StartAt:  booking.StartAt,
		EndAt:    booking.EndAt,
		MaxUsers: 2,
	})
	if err != nil {
		logCtx := s.logg.WithBookingID(ctx, booking.ID.String())
		s.logg.Warn(logCtx, "meeting room provisioning failed")
		return
	}
	if err := s.repo.SetMeetingLink(ctx, booking.ID, room.URL); err != nil {
		logCtx := s.logg.WithBookingID(ctx, booking.ID.String())
		s.logg.Error(logCtx, "persist meeting link", err)
		return
	}
	booking.MeetingLink = &room.URL
}

func (s *service) countConflict(err error) {
	if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeConflict {
		s.metrics.IncConflictRejection()
	}
}

func (s *service) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role enums.ActorRole) (*models.Booking, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if err := authorizeActor(booking, actorID, role); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) ListBookings(ctx context.Context, input ListInput) ([]models.Booking, error) {
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
		filter.StudentID = &input.ActorID
	case enums.ActorRoleTutor:
		filter.TutorID = &input.ActorID
	case enums.ActorRoleAdmin:
		// Admins see everything.
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return rows, nil
}

func (s *service) TransitionStatus(ctx context.Context, input TransitionInput) (*models.Booking, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status")
	}

	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByID(ctx, input.BookingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}

		if err := authorizeActor(loaded, input.ActorID, input.ActorRole); err != nil {
			return err
		}
		if input.ActorRole == enums.ActorRoleStudent && input.NewStatus != enums.BookingStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeForbidden, "students may only cancel their bookings")
		}
		if !CanTransition(loaded.Status, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking status transition not allowed").
				WithDetails(map[string]string{
					"from": loaded.Status.String(),
					"to":   input.NewStatus.String(),
				})
		}

		if err := repo.UpdateStatus(ctx, loaded.ID, input.NewStatus, input.Reason); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}

		oldStatus := loaded.Status
		loaded.Status = input.NewStatus
		loaded.StatusReason = input.Reason
		booking = loaded

		actor := &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole}
		if err := s.emitStatusChanged(ctx, tx, loaded, oldStatus, actor, derefReason(input.Reason)); err != nil {
			return err
		}
		s.metrics.IncBookingTransition(oldStatus.String(), input.NewStatus.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, actor *outbox.ActorRef) (*models.Booking, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	booking, err := repo.FindByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}

	// A second confirmation of an already-paid booking is a no-op.
	if booking.Status == enums.BookingStatusConfirmed && booking.PaymentStatus == enums.BookingPaymentStatusPaid {
		return booking, nil
	}
	if !CanTransition(booking.Status, enums.BookingStatusConfirmed) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking cannot be confirmed in current state").
			WithDetails(map[string]string{"from": booking.Status.String()})
	}

	if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusConfirmed, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm booking")
	}
	if err := repo.SetPaymentStatus(ctx, booking.ID, enums.BookingPaymentStatusPaid); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking paid")
	}

	oldStatus := booking.Status
	booking.Status = enums.BookingStatusConfirmed
	booking.PaymentStatus = enums.BookingPaymentStatusPaid

	if err := s.emitStatusChanged(ctx, tx, booking, oldStatus, actor, "payment captured"); err != nil {
		return nil, err
	}
	s.metrics.IncBookingTransition(oldStatus.String(), booking.Status.String())
	return booking, nil
}

func (s *service) MarkRefunded(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Booking, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	booking, err := repo.FindByID(ctx, bookingID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}

	if booking.Status == enums.BookingStatusRefunded {
		return booking, nil
	}
	if !CanTransition(booking.Status, enums.BookingStatusRefunded) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking cannot be refunded in current state").
			WithDetails(map[string]string{"from": booking.Status.String()})
	}

	reasonPtr := &reason
	if reason == "" {
		reasonPtr = nil
	}
	if err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusRefunded, reasonPtr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking refunded")
	}
	if err := repo.SetPaymentStatus(ctx, booking.ID, enums.BookingPaymentStatusRefunded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark booking payment refunded")
	}

	oldStatus := booking.Status
	booking.Status = enums.BookingStatusRefunded
	booking.PaymentStatus = enums.BookingPaymentStatusRefunded
	booking.StatusReason = reasonPtr

	if err := s.emitStatusChanged(ctx, tx, booking, oldStatus, actor, reason); err != nil {
		return nil, err
	}
	s.metrics.IncBookingTransition(oldStatus.String(), booking.Status.String())
	return booking, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, booking *models.Booking, oldStatus enums.BookingStatus, actor *outbox.ActorRef, reason string) error {
	actorRole := enums.ActorRoleAdmin
	if actor != nil {
		actorRole = actor.Role
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventBookingStatusChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.BookingStatusChangedEvent{
			BookingID: booking.ID,
			StudentID: booking.StudentID,
			TutorID:   booking.TutorID,
			OldStatus: oldStatus,
			NewStatus: booking.Status,
			ActorRole: actorRole,
			Reason:    reason,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func authorizeActor(booking *models.Booking, actorID uuid.UUID, role enums.ActorRole) error {
	switch role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleStudent:
		if booking.StudentID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to student")
		}
	case enums.ActorRoleTutor:
		if booking.TutorID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking does not belong to tutor")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	return nil
}

func derefReason(reason *string) string {
	if reason == nil {
		return ""
	}
	return *reason
}
