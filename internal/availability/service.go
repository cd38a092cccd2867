package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
)

const minutesPerDay = 24 * 60

// Service exposes availability block management plus the conflict checks the
// booking flow depends on.
type Service interface {
	CreateBlock(ctx context.Context, tutorID uuid.UUID, input CreateBlockInput) (*models.AvailabilityBlock, error)
	ListBlocks(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilityBlock, error)
	DeleteBlock(ctx context.Context, tutorID, blockID uuid.UUID) error
	CheckWindow(ctx context.Context, repo Repository, tutorID uuid.UUID, startAt, endAt time.Time, excludeBookingID uuid.UUID) error
	GetAvailableSlots(ctx context.Context, tutorID uuid.UUID, day time.Time, durationMinutes int) ([]Slot, error)
}

// CreateBlockInput holds a weekly recurring availability window.
type CreateBlockInput struct {
	DayOfWeek   int
	StartMinute int
	EndMinute   int
}

// Slot is a bookable start/end pair inside a tutor's availability.
type Slot struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

// ConflictDetails names why a window was rejected and which bookings collide.
type ConflictDetails struct {
	Reason              string      `json:"reason"`
	ConflictingBookings []uuid.UUID `json:"conflictingBookings,omitempty"`
}

const (
	// ReasonNoAvailability marks tutors with no recurring blocks at all.
	ReasonNoAvailability = "no_availability_configured"
	// ReasonOutsideAvailability marks windows no single block covers.
	ReasonOutsideAvailability = "outside_availability"
	// ReasonOverlap marks windows colliding with an active booking.
	ReasonOverlap = "booking_overlap"
)

type service struct {
	repo     Repository
	slotStep int
}

// NewService builds the availability service.
func NewService(repo Repository, cfg config.MarketplaceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	step := cfg.SlotStepMinutes
	if step <= 0 {
		return nil, fmt.Errorf("slot step minutes must be positive")
	}
	return &service{repo: repo, slotStep: step}, nil
}

func (s *service) CreateBlock(ctx context.Context, tutorID uuid.UUID, input CreateBlockInput) (*models.AvailabilityBlock, error) {
	if tutorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.DayOfWeek < 0 || input.DayOfWeek > 6 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "day of week must be between 0 (Sunday) and 6 (Saturday)")
	}
	if input.StartMinute < 0 || input.EndMinute > minutesPerDay || input.StartMinute >= input.EndMinute {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block window must satisfy 0 <= start < end <= 1440")
	}
	if input.StartMinute%s.slotStep != 0 || input.EndMinute%s.slotStep != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("block boundaries must align to %d-minute steps", s.slotStep))
	}

	existing, err := s.repo.ListBlocksByTutorDay(ctx, tutorID, input.DayOfWeek)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability blocks")
	}
	for _, block := range existing {
		if input.StartMinute < block.EndMinute && input.EndMinute > block.StartMinute {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "block overlaps an existing availability block")
		}
	}

	block := &models.AvailabilityBlock{
		TutorID:     tutorID,
		DayOfWeek:   input.DayOfWeek,
		StartMinute: input.StartMinute,
		EndMinute:   input.EndMinute,
	}
	created, err := s.repo.CreateBlock(ctx, block)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create availability block")
	}
	return created, nil
}

func (s *service) ListBlocks(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilityBlock, error) {
	if tutorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tutor id required")
	}
	rows, err := s.repo.ListBlocksByTutor(ctx, tutorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability blocks")
	}
	return rows, nil
}

func (s *service) DeleteBlock(ctx context.Context, tutorID, blockID uuid.UUID) error {
	if tutorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if blockID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "block id required")
	}
	block, err := s.repo.FindBlockByID(ctx, blockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "availability block not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability block")
	}
	if block.TutorID != tutorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "availability block does not belong to tutor")
	}
	if err := s.repo.DeleteBlock(ctx, blockID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete availability block")
	}
	return nil
}

// CheckWindow validates the requested window against the tutor's recurring
// availability and active bookings. The repo argument lets callers run the
// same check inside their own transaction; pass nil to use the service repo.
// excludeBookingID skips one booking, for re-checks during updates.
func (s *service) CheckWindow(ctx context.Context, repo Repository, tutorID uuid.UUID, startAt, endAt time.Time, excludeBookingID uuid.UUID) error {
	if repo == nil {
		repo = s.repo
	}
	if tutorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tutor id required")
	}
	if !startAt.Before(endAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "window start must be before end")
	}

	dayOfWeek, startMinute, endMinute, crossesMidnight := windowMinutes(startAt, endAt)
	if crossesMidnight {
		return pkgerrors.New(pkgerrors.CodeValidation, "window must not cross midnight UTC")
	}

	blocks, err := repo.ListBlocksByTutorDay(ctx, tutorID, dayOfWeek)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability blocks")
	}
	if len(blocks) == 0 {
		all, err := repo.ListBlocksByTutor(ctx, tutorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability blocks")
		}
		if len(all) == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "tutor has no availability configured").
				WithDetails(ConflictDetails{Reason: ReasonNoAvailability})
		}
	}
	if !anyBlockCovers(blocks, startMinute, endMinute) {
		return pkgerrors.New(pkgerrors.CodeConflict, "window falls outside the tutor's availability").
			WithDetails(ConflictDetails{Reason: ReasonOutsideAvailability})
	}

	bookings, err := repo.ListActiveBookingsInRange(ctx, tutorID, startAt, endAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings in range")
	}
	var conflicting []uuid.UUID
	for _, booking := range bookings {
		if booking.ID == excludeBookingID {
			continue
		}
		if Overlaps(startAt, endAt, booking.StartAt, booking.EndAt) {
			conflicting = append(conflicting, booking.ID)
		}
	}
	if len(conflicting) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "window overlaps an existing booking").
			WithDetails(ConflictDetails{Reason: ReasonOverlap, ConflictingBookings: conflicting})
	}
	return nil
}

// GetAvailableSlots enumerates the free slots of the given UTC day at the
// configured step, each sized durationMinutes.
func (s *service) GetAvailableSlots(ctx context.Context, tutorID uuid.UUID, day time.Time, durationMinutes int) ([]Slot, error) {
	if tutorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tutor id required")
	}
	if durationMinutes <= 0 || durationMinutes%s.slotStep != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmtDurationError(s.slotStep))
	}

	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	dayOfWeek := int(dayStart.Weekday())

	blocks, err := s.repo.ListBlocksByTutorDay(ctx, tutorID, dayOfWeek)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability blocks")
	}
	if len(blocks) == 0 {
		return []Slot{}, nil
	}

	bookings, err := s.repo.ListActiveBookingsInRange(ctx, tutorID, dayStart, dayEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings in range")
	}

	slots := []Slot{}
	for _, block := range blocks {
		for startMinute := block.StartMinute; startMinute+durationMinutes <= block.EndMinute; startMinute += s.slotStep {
			slotStart := dayStart.Add(time.Duration(startMinute) * time.Minute)
			slotEnd := slotStart.Add(time.Duration(durationMinutes) * time.Minute)

			blocked := false
			for _, booking := range bookings {
				if Overlaps(slotStart, slotEnd, booking.StartAt, booking.EndAt) {
					blocked = true
					break
				}
			}
			if !blocked {
				slots = append(slots, Slot{StartAt: slotStart, EndAt: slotEnd})
			}
		}
	}
	return slots, nil
}

func fmtDurationError(step int) string {
	return fmt.Sprintf("duration must be a positive multiple of %d minutes", step)
}
