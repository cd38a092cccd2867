package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
)

type stubRepo struct {
	blocks      []models.AvailabilityBlock
	blocksErr   error
	bookings    []models.Booking
	bookingsErr error
	created     *models.AvailabilityBlock
	createErr   error
	findResult  *models.AvailabilityBlock
	findErr     error
	deleteErr   error
	deletedID   uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateBlock(ctx context.Context, block *models.AvailabilityBlock) (*models.AvailabilityBlock, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = block
	return block, nil
}

func (s *stubRepo) FindBlockByID(ctx context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findResult == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findResult, nil
}

func (s *stubRepo) ListBlocksByTutor(ctx context.Context, tutorID uuid.UUID) ([]models.AvailabilityBlock, error) {
	return s.blocks, s.blocksErr
}

func (s *stubRepo) ListBlocksByTutorDay(ctx context.Context, tutorID uuid.UUID, dayOfWeek int) ([]models.AvailabilityBlock, error) {
	if s.blocksErr != nil {
		return nil, s.blocksErr
	}
	var rows []models.AvailabilityBlock
	for _, block := range s.blocks {
		if block.DayOfWeek == dayOfWeek {
			rows = append(rows, block)
		}
	}
	return rows, nil
}

func (s *stubRepo) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubRepo) ListActiveBookingsInRange(ctx context.Context, tutorID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	return s.bookings, s.bookingsErr
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, config.MarketplaceConfig{SlotStepMinutes: 30})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

// Monday 2026-01-05 (UTC). Weekday() == 1.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func mondayBlock(tutorID uuid.UUID, startMinute, endMinute int) models.AvailabilityBlock {
	return models.AvailabilityBlock{
		ID:          uuid.New(),
		TutorID:     tutorID,
		DayOfWeek:   1,
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}
}

func TestCheckWindowInsideBlock(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)}}
	svc := newTestService(t, repo)

	start := monday.Add(10 * time.Hour)
	end := start.Add(time.Hour)
	if err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil); err != nil {
		t.Fatalf("expected window accepted, got %v", err)
	}
}

func TestCheckWindowOutsideBlock(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)}}
	svc := newTestService(t, repo)

	// 11:30 to 12:30 pokes past the block end.
	start := monday.Add(11*time.Hour + 30*time.Minute)
	end := start.Add(time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	details, ok := typed.Details().(ConflictDetails)
	if !ok || details.Reason != ReasonOutsideAvailability {
		t.Fatalf("expected outside_availability reason, got %+v", typed.Details())
	}
}

func TestCheckWindowNoBlocksConfigured(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	start := monday.Add(10 * time.Hour)
	end := start.Add(time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	details, ok := typed.Details().(ConflictDetails)
	if !ok || details.Reason != ReasonNoAvailability {
		t.Fatalf("expected no_availability_configured reason, got %+v", typed.Details())
	}
}

func TestCheckWindowBlocksOnAnotherDay(t *testing.T) {
	tutorID := uuid.New()
	// Blocks exist, just not on Monday.
	tuesdayBlock := mondayBlock(tutorID, 9*60, 12*60)
	tuesdayBlock.DayOfWeek = 2
	repo := &stubRepo{blocks: []models.AvailabilityBlock{tuesdayBlock}}
	svc := newTestService(t, repo)

	start := monday.Add(10 * time.Hour)
	end := start.Add(time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	details, ok := typed.Details().(ConflictDetails)
	if !ok || details.Reason != ReasonOutsideAvailability {
		t.Fatalf("expected outside_availability reason, got %+v", typed.Details())
	}
}

func TestCheckWindowRejectsOverlap(t *testing.T) {
	tutorID := uuid.New()
	existingID := uuid.New()
	repo := &stubRepo{
		blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)},
		bookings: []models.Booking{{
			ID:      existingID,
			TutorID: tutorID,
			StartAt: monday.Add(10 * time.Hour),
			EndAt:   monday.Add(11 * time.Hour),
			Status:  "confirmed",
		}},
	}
	svc := newTestService(t, repo)

	// 10:30 to 11:30 overlaps the 10:00 to 11:00 session.
	start := monday.Add(10*time.Hour + 30*time.Minute)
	end := start.Add(time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	details, ok := typed.Details().(ConflictDetails)
	if !ok || details.Reason != ReasonOverlap {
		t.Fatalf("expected booking_overlap reason, got %+v", typed.Details())
	}
	if len(details.ConflictingBookings) != 1 || details.ConflictingBookings[0] != existingID {
		t.Fatalf("expected conflicting id %s, got %v", existingID, details.ConflictingBookings)
	}
}

func TestCheckWindowAllowsBackToBack(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{
		blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)},
		bookings: []models.Booking{{
			ID:      uuid.New(),
			TutorID: tutorID,
			StartAt: monday.Add(10 * time.Hour),
			EndAt:   monday.Add(11 * time.Hour),
			Status:  "confirmed",
		}},
	}
	svc := newTestService(t, repo)

	// 11:00 to 12:00 touches the existing session's end, which is allowed.
	start := monday.Add(11 * time.Hour)
	end := start.Add(time.Hour)
	if err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil); err != nil {
		t.Fatalf("expected back-to-back window accepted, got %v", err)
	}
}

func TestCheckWindowRejectsMidnightCross(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 0, 1440)}}
	svc := newTestService(t, repo)

	start := monday.Add(23*time.Hour + 30*time.Minute)
	end := start.Add(time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for midnight cross, got %v", err)
	}
}

func TestCheckWindowAllowsEndingAtMidnight(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 0, 1440)}}
	svc := newTestService(t, repo)

	start := monday.Add(23 * time.Hour)
	end := monday.Add(24 * time.Hour)
	if err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil); err != nil {
		t.Fatalf("expected window ending at midnight accepted, got %v", err)
	}
}

func TestCheckWindowSpanningTwoAdjacentBlocks(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{
		mondayBlock(tutorID, 9*60, 11*60),
		mondayBlock(tutorID, 11*60, 13*60),
	}}
	svc := newTestService(t, repo)

	// 10:00 to 12:00 is covered only by the union of two blocks, not one.
	start := monday.Add(10 * time.Hour)
	end := start.Add(2 * time.Hour)
	err := svc.CheckWindow(context.Background(), nil, tutorID, start, end, uuid.Nil)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for window spanning blocks, got %v", err)
	}
}

func TestGetAvailableSlotsSkipsBookedWindows(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{
		blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)},
		bookings: []models.Booking{{
			ID:      uuid.New(),
			TutorID: tutorID,
			StartAt: monday.Add(10 * time.Hour),
			EndAt:   monday.Add(11 * time.Hour),
			Status:  "confirmed",
		}},
	}
	svc := newTestService(t, repo)

	slots, err := svc.GetAvailableSlots(context.Background(), tutorID, monday, 60)
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}

	// Block 09:00-12:00 with 10:00-11:00 taken leaves 09:00 and 11:00 starts.
	want := []time.Time{
		monday.Add(9 * time.Hour),
		monday.Add(11 * time.Hour),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(slots), slots)
	}
	for i, slot := range slots {
		if !slot.StartAt.Equal(want[i]) {
			t.Fatalf("slot %d: expected start %v, got %v", i, want[i], slot.StartAt)
		}
		if !slot.EndAt.Equal(want[i].Add(time.Hour)) {
			t.Fatalf("slot %d: unexpected end %v", i, slot.EndAt)
		}
	}
}

func TestGetAvailableSlotsRejectsUnalignedDuration(t *testing.T) {
	tutorID := uuid.New()
	svc := newTestService(t, &stubRepo{})

	_, err := svc.GetAvailableSlots(context.Background(), tutorID, monday, 45)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for 45-minute duration, got %v", err)
	}
}

func TestCreateBlockRejectsOverlappingBlock(t *testing.T) {
	tutorID := uuid.New()
	repo := &stubRepo{blocks: []models.AvailabilityBlock{mondayBlock(tutorID, 9*60, 12*60)}}
	svc := newTestService(t, repo)

	_, err := svc.CreateBlock(context.Background(), tutorID, CreateBlockInput{
		DayOfWeek:   1,
		StartMinute: 11 * 60,
		EndMinute:   13 * 60,
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestDeleteBlockChecksOwnership(t *testing.T) {
	tutorID := uuid.New()
	blockID := uuid.New()
	repo := &stubRepo{findResult: &models.AvailabilityBlock{ID: blockID, TutorID: uuid.New()}}
	svc := newTestService(t, repo)

	err := svc.DeleteBlock(context.Background(), tutorID, blockID)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}
