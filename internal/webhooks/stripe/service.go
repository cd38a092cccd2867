package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
)

type paymentProcessor interface {
	ConfirmPayment(ctx context.Context, gatewayIntentID string, actor *outbox.ActorRef) (*models.Payment, error)
	FailPayment(ctx context.Context, gatewayIntentID, reason string, actor *outbox.ActorRef) (*models.Payment, error)
}

type paymentFinder interface {
	FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
}

type disputeOpener interface {
	OpenChargeback(ctx context.Context, paymentID uuid.UUID, gatewayReason string) (*models.Dispute, error)
}

// ServiceParams wires the stripe webhook handler dependencies.
type ServiceParams struct {
	Payments     paymentProcessor
	PaymentsRepo paymentFinder
	Disputes     disputeOpener
	Logger       *logger.Logger
}

// Service translates stripe webhook deliveries into lifecycle operations.
type Service struct {
	payments     paymentProcessor
	paymentsRepo paymentFinder
	disputes     disputeOpener
	logg         *logger.Logger
}

// NewService validates and assembles the webhook handler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.PaymentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	}
	if params.Disputes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "disputes service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments:     params.Payments,
		paymentsRepo: params.PaymentsRepo,
		disputes:     params.Disputes,
		logg:         params.Logger,
	}, nil
}

// HandleEvent routes a verified stripe event to the matching lifecycle
// operation. Unrecognized event types are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.confirmIntent(logCtx, intent.ID)
	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.failIntent(logCtx, intent.ID, declineReason(intent))
	case stripe.EventTypeChargeDisputeCreated:
		var dispute stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute event")
		}
		if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "dispute payment intent missing")
		}
		return s.openChargeback(logCtx, dispute.PaymentIntent.ID, string(dispute.Reason))
	default:
		s.logg.Info(logCtx, "ignoring unhandled stripe event")
		return nil
	}
}

func (s *Service) confirmIntent(ctx context.Context, intentID string) error {
	payment, err := s.payments.ConfirmPayment(ctx, intentID, nil)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment confirmed from webhook")
	return nil
}

func (s *Service) failIntent(ctx context.Context, intentID, reason string) error {
	payment, err := s.payments.FailPayment(ctx, intentID, reason, nil)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment failure recorded from webhook")
	return nil
}

func (s *Service) openChargeback(ctx context.Context, intentID, reason string) error {
	payment, err := s.paymentsRepo.FindPaymentByIntentID(ctx, intentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment for disputed intent")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	_, err = s.disputes.OpenChargeback(ctx, payment.ID, reason)
	if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeConflict {
		// A dispute is already open for this payment. Redelivered webhooks
		// land here and must not fail the delivery.
		s.logg.Info(ctx, "chargeback already recorded")
		return nil
	}
	return err
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &intent, nil
}

func declineReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment declined by gateway"
}
