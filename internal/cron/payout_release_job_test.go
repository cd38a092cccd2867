package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/tutorlink/tutorlink-backend/internal/payments"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

type stubReleasable struct {
	payouts []models.Payout
	asOf    time.Time
	err     error
}

func (s *stubReleasable) ListReleasablePayouts(ctx context.Context, asOf time.Time, limit int) ([]models.Payout, error) {
	s.asOf = asOf
	return s.payouts, s.err
}

type stubPayoutProcessor struct {
	inputs []payments.ProcessPayoutInput
	errFor map[uuid.UUID]error
}

func (s *stubPayoutProcessor) ProcessPayout(ctx context.Context, input payments.ProcessPayoutInput) (*models.Payout, error) {
	s.inputs = append(s.inputs, input)
	if err := s.errFor[input.PayoutID]; err != nil {
		return nil, err
	}
	return &models.Payout{ID: input.PayoutID, Status: enums.PayoutStatusPaid}, nil
}

func newPayoutReleaseJob(t *testing.T, payouts *stubReleasable, processor *stubPayoutProcessor) Job {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "cron-test", Level: zerolog.ErrorLevel})
	job, err := NewPayoutReleaseJob(PayoutReleaseJobParams{
		Logger:       logg,
		Payouts:      payouts,
		Processor:    processor,
		Destinations: TemplateDestinations{Template: "acct_%s"},
	})
	if err != nil {
		t.Fatalf("NewPayoutReleaseJob: %v", err)
	}
	return job
}

func TestPayoutReleaseProcessesDuePayouts(t *testing.T) {
	tutorID := uuid.New()
	due := []models.Payout{
		{ID: uuid.New(), TutorID: tutorID, AmountCents: 4500, Status: enums.PayoutStatusPending},
		{ID: uuid.New(), TutorID: uuid.New(), AmountCents: 9000, Status: enums.PayoutStatusPending},
	}
	payouts := &stubReleasable{payouts: due}
	processor := &stubPayoutProcessor{}
	job := newPayoutReleaseJob(t, payouts, processor)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(processor.inputs) != 2 {
		t.Fatalf("expected 2 payouts processed, got %d", len(processor.inputs))
	}
	first := processor.inputs[0]
	if first.PayoutID != due[0].ID {
		t.Fatalf("processed wrong payout %s", first.PayoutID)
	}
	if first.ActorRole != enums.ActorRoleAdmin {
		t.Fatalf("release must run with admin role, got %s", first.ActorRole)
	}
	if first.AdminOverride {
		t.Fatal("scheduled release must not override the hold")
	}
	if first.Destination != "acct_"+tutorID.String() {
		t.Fatalf("unexpected destination %q", first.Destination)
	}
}

func TestPayoutReleaseContinuesPastFailures(t *testing.T) {
	failing := models.Payout{ID: uuid.New(), TutorID: uuid.New(), Status: enums.PayoutStatusPending}
	healthy := models.Payout{ID: uuid.New(), TutorID: uuid.New(), Status: enums.PayoutStatusPending}
	payouts := &stubReleasable{payouts: []models.Payout{failing, healthy}}
	gatewayErr := errors.New("gateway down")
	processor := &stubPayoutProcessor{errFor: map[uuid.UUID]error{failing.ID: gatewayErr}}
	job := newPayoutReleaseJob(t, payouts, processor)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when a payout fails")
	}
	if len(processor.inputs) != 2 {
		t.Fatalf("failure must not stop the batch, processed %d", len(processor.inputs))
	}
	if !errors.Is(err, gatewayErr) {
		t.Fatalf("aggregated error must preserve the cause, got %v", err)
	}
	if !strings.Contains(err.Error(), failing.ID.String()) {
		t.Fatalf("aggregated error must name the failed payout, got %v", err)
	}
}

func TestPayoutReleaseAggregatesAllFailures(t *testing.T) {
	first := models.Payout{ID: uuid.New(), TutorID: uuid.New(), Status: enums.PayoutStatusPending}
	second := models.Payout{ID: uuid.New(), TutorID: uuid.New(), Status: enums.PayoutStatusPending}
	payouts := &stubReleasable{payouts: []models.Payout{first, second}}
	firstErr := errors.New("transfer rejected")
	secondErr := errors.New("gateway timeout")
	processor := &stubPayoutProcessor{errFor: map[uuid.UUID]error{first.ID: firstErr, second.ID: secondErr}}
	job := newPayoutReleaseJob(t, payouts, processor)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when every payout fails")
	}
	if !errors.Is(err, firstErr) || !errors.Is(err, secondErr) {
		t.Fatalf("combined error must carry every cause, got %v", err)
	}
	if got := multierr.Errors(err); len(got) != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d (%v)", len(got), err)
	}
}

func TestPayoutReleaseNoopWhenNothingDue(t *testing.T) {
	payouts := &stubReleasable{}
	processor := &stubPayoutProcessor{}
	job := newPayoutReleaseJob(t, payouts, processor)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(processor.inputs) != 0 {
		t.Fatalf("nothing due, yet %d payouts processed", len(processor.inputs))
	}
	if payouts.asOf.IsZero() {
		t.Fatal("expected the job to query with the current time")
	}
}
