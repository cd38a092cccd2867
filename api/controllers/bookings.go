package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/api/middleware"
	"github.com/tutorlink/tutorlink-backend/api/responses"
	"github.com/tutorlink/tutorlink-backend/api/validators"
	"github.com/tutorlink/tutorlink-backend/internal/bookings"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

type createBookingRequest struct {
	TutorID    string    `json:"tutorId" validate:"required"`
	SubjectID  string    `json:"subjectId" validate:"required"`
	StartAt    time.Time `json:"startAt" validate:"required"`
	EndAt      time.Time `json:"endAt" validate:"required"`
	PriceCents int64     `json:"priceCents" validate:"required,gt=0"`
	Currency   string    `json:"currency"`
}

type transitionBookingRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason"`
}

// CreateBooking books a session with a tutor for the authenticated student.
func CreateBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleStudent {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only students may book sessions"))
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tutorID, err := uuid.Parse(req.TutorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tutor id"))
			return
		}
		subjectID, err := uuid.Parse(req.SubjectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subject id"))
			return
		}

		input := bookings.CreateBookingInput{
			StudentID:  actorID,
			TutorID:    tutorID,
			SubjectID:  subjectID,
			StartAt:    req.StartAt,
			EndAt:      req.EndAt,
			PriceCents: req.PriceCents,
		}
		if req.Currency != "" {
			currency, err := enums.ParseCurrency(req.Currency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
				return
			}
			input.Currency = currency
		}

		booking, err := svc.CreateBooking(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

// GetBooking returns one of the caller's bookings.
func GetBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id"))
			return
		}

		booking, err := svc.GetBooking(r.Context(), bookingID, actorID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

// ListBookings returns the caller's bookings, optionally filtered by status.
func ListBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := bookings.ListInput{ActorID: actorID, ActorRole: role}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseBookingStatus(raw)
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

		items, err := svc.ListBookings(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// TransitionBooking moves a booking through its status machine.
func TransitionBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id"))
			return
		}

		var req transitionBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseBookingStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		booking, err := svc.TransitionStatus(r.Context(), bookings.TransitionInput{
			BookingID: bookingID,
			NewStatus: status,
			ActorID:   actorID,
			ActorRole: role,
			Reason:    req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}
