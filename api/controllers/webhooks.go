package controllers

import (
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/tutorlink/tutorlink-backend/api/responses"
	stripewebhook "github.com/tutorlink/tutorlink-backend/internal/webhooks/stripe"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

// stripe caps event payloads well below this; anything larger is garbage.
const maxWebhookBody = 1 << 16

// eventVerifier turns a raw request body into a verified gateway event.
type eventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeWebhook verifies, deduplicates and dispatches gateway events.
// Stripe retries on any non-2xx, so the idempotency mark is released when
// handling fails.
func StripeWebhook(verifier eventVerifier, guard *stripewebhook.IdempotencyGuard, svc *stripewebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		event, err := verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature verification failed"))
			return
		}

		logCtx := logg.WithField(r.Context(), "stripe_event", event.ID)
		logCtx = logg.WithField(logCtx, "event_type", string(event.Type))

		already, err := guard.CheckAndMark(r.Context(), event.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if already {
			logg.Info(logCtx, "duplicate webhook delivery skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(r.Context(), &event); err != nil {
			if delErr := guard.Delete(r.Context(), event.ID); delErr != nil {
				logg.Error(logCtx, "release idempotency mark", delErr)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		logg.Info(logCtx, "webhook processed")
		responses.WriteSuccess(w, nil)
	}
}
