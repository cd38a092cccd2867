package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tutorlink/tutorlink-backend/internal/payments"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

const payoutReleaseBatchSize = 50

type releasablePayouts interface {
	ListReleasablePayouts(ctx context.Context, asOf time.Time, limit int) ([]models.Payout, error)
}

type payoutProcessor interface {
	ProcessPayout(ctx context.Context, input payments.ProcessPayoutInput) (*models.Payout, error)
}

// DestinationResolver maps a tutor to their gateway payout account.
type DestinationResolver interface {
	DestinationFor(ctx context.Context, tutorID uuid.UUID) (string, error)
}

// TemplateDestinations derives gateway account ids from a format string such
// as "acct_%s". It stands in until tutors carry connected-account records.
type TemplateDestinations struct {
	Template string
}

func (t TemplateDestinations) DestinationFor(ctx context.Context, tutorID uuid.UUID) (string, error) {
	if t.Template == "" {
		return "", errors.New("payout destination template not configured")
	}
	return fmt.Sprintf(t.Template, tutorID), nil
}

// PayoutReleaseJobParams configure the payout release job.
type PayoutReleaseJobParams struct {
	Logger       *logger.Logger
	Payouts      releasablePayouts
	Processor    payoutProcessor
	Destinations DestinationResolver
	BatchSize    int
}

// NewPayoutReleaseJob builds the job that pays out pending payouts whose hold
// window has elapsed.
func NewPayoutReleaseJob(params PayoutReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payout processor required")
	}
	if params.Destinations == nil {
		return nil, fmt.Errorf("destination resolver required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = payoutReleaseBatchSize
	}
	return &payoutReleaseJob{
		logg:         params.Logger,
		payouts:      params.Payouts,
		processor:    params.Processor,
		destinations: params.Destinations,
		batch:        batch,
		actorID:      uuid.New(),
		now:          time.Now,
	}, nil
}

type payoutReleaseJob struct {
	logg         *logger.Logger
	payouts      releasablePayouts
	processor    payoutProcessor
	destinations DestinationResolver
	batch        int
	actorID      uuid.UUID
	now          func() time.Time
}

func (j *payoutReleaseJob) Name() string { return "payout-release" }

func (j *payoutReleaseJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	due, err := j.payouts.ListReleasablePayouts(ctx, asOf, j.batch)
	if err != nil {
		return fmt.Errorf("list releasable payouts: %w", err)
	}
	if len(due) == 0 {
		j.logg.Info(ctx, "no payouts due for release")
		return nil
	}

	released := 0
	var errs []error
	for _, payout := range due {
		payoutCtx := j.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"tutor_id":  payout.TutorID.String(),
		})
		destination, err := j.destinations.DestinationFor(ctx, payout.TutorID)
		if err != nil {
			j.logg.Error(payoutCtx, "cannot resolve payout destination", err)
			errs = append(errs, fmt.Errorf("payout %s: resolve destination: %w", payout.ID, err))
			continue
		}
		_, err = j.processor.ProcessPayout(ctx, payments.ProcessPayoutInput{
			PayoutID:    payout.ID,
			ActorID:     j.actorID,
			ActorRole:   enums.ActorRoleAdmin,
			Destination: destination,
		})
		if err != nil {
			// Gateway failures leave the payout pending for the next cycle.
			j.logg.Error(payoutCtx, "payout release failed", err)
			errs = append(errs, fmt.Errorf("payout %s: %w", payout.ID, err))
			continue
		}
		released++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":      len(due),
		"released": released,
		"failed":   len(errs),
	})
	j.logg.Info(logCtx, "payout release cycle complete")
	return multierr.Combine(errs...)
}
