package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/api/middleware"
	"github.com/tutorlink/tutorlink-backend/api/responses"
	"github.com/tutorlink/tutorlink-backend/api/validators"
	"github.com/tutorlink/tutorlink-backend/internal/payments"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
)

type createIntentRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
}

type confirmPaymentRequest struct {
	IntentID string `json:"intentId" validate:"required"`
}

type refundRequest struct {
	AmountCents *int64 `json:"amountCents" validate:"omitempty,gt=0"`
	Reason      string `json:"reason" validate:"required"`
}

type processPayoutRequest struct {
	Destination   string `json:"destination" validate:"required"`
	AdminOverride bool   `json:"adminOverride"`
}

type intentResponse struct {
	PaymentID    uuid.UUID           `json:"paymentId"`
	IntentID     string              `json:"intentId"`
	ClientSecret string              `json:"clientSecret"`
	Status       enums.PaymentStatus `json:"status"`
}

// CreatePaymentIntent opens a gateway intent for a confirmed booking.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id"))
			return
		}

		out, err := svc.CreatePaymentIntent(r.Context(), payments.CreateIntentInput{
			BookingID: bookingID,
			ActorID:   actorID,
			ActorRole: role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intentResponse{
			PaymentID:    out.PaymentID,
			IntentID:     out.IntentID,
			ClientSecret: out.ClientSecret,
			Status:       out.Status,
		})
	}
}

// ConfirmPayment records a gateway success reported by the client. The
// webhook remains authoritative; this is a convenience for local flows.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ConfirmPayment(r.Context(), req.IntentID, &outbox.ActorRef{
			UserID: actorID,
			Role:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// GetPayment returns a single payment record.
func GetPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := middleware.ActorFromContext(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, err := svc.GetPayment(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// RefundPayment issues an admin refund against a completed payment.
func RefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ProcessRefund(r.Context(), payments.RefundInput{
			PaymentID:   paymentID,
			AmountCents: req.AmountCents,
			Reason:      req.Reason,
			Actor:       &outbox.ActorRef{UserID: actorID, Role: role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// ListPayouts returns payouts visible to the caller. Tutors see their own;
// admins see everything.
func ListPayouts(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.ListPayoutsInput{ActorID: actorID, ActorRole: role}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}
		if input.Limit, err = validators.ParseQueryInt(r, "limit", 0, 1, 100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Offset, err = validators.ParseQueryInt(r, "offset", 0, 0, 10000); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payouts, err := svc.ListPayouts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payouts)
	}
}

// ProcessPayout transfers a pending payout to the tutor's account.
func ProcessPayout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuid.Parse(chi.URLParam(r, "payoutId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		var req processPayoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.ProcessPayout(r.Context(), payments.ProcessPayoutInput{
			PayoutID:      payoutID,
			ActorID:       actorID,
			ActorRole:     role,
			AdminOverride: req.AdminOverride,
			Destination:   req.Destination,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}
