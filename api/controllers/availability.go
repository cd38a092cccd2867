package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/api/middleware"
	"github.com/tutorlink/tutorlink-backend/api/responses"
	"github.com/tutorlink/tutorlink-backend/api/validators"
	"github.com/tutorlink/tutorlink-backend/internal/availability"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

type createBlockRequest struct {
	DayOfWeek   int `json:"dayOfWeek" validate:"min=0,max=6"`
	StartMinute int `json:"startMinute" validate:"min=0,max=1439"`
	EndMinute   int `json:"endMinute" validate:"min=1,max=1440"`
}

// GetAvailableSlots lists bookable slots for a tutor on a given day.
func GetAvailableSlots(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tutorID, err := uuid.Parse(chi.URLParam(r, "tutorId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tutor id"))
			return
		}
		rawDate := r.URL.Query().Get("date")
		if rawDate == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date is required"))
			return
		}
		day, err := time.Parse("2006-01-02", rawDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD"))
			return
		}
		duration, err := validators.ParseQueryInt(r, "duration", 60, 15, 480)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slots, err := svc.GetAvailableSlots(r.Context(), tutorID, day, duration)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slots)
	}
}

// CreateAvailabilityBlock adds a weekly recurring window for the
// authenticated tutor.
func CreateAvailabilityBlock(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleTutor {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only tutors manage availability"))
			return
		}

		var req createBlockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		block, err := svc.CreateBlock(r.Context(), actorID, availability.CreateBlockInput{
			DayOfWeek:   req.DayOfWeek,
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, block)
	}
}

// ListAvailabilityBlocks returns the authenticated tutor's recurring windows.
func ListAvailabilityBlocks(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleTutor {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only tutors manage availability"))
			return
		}

		blocks, err := svc.ListBlocks(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, blocks)
	}
}

// DeleteAvailabilityBlock removes one of the authenticated tutor's windows.
func DeleteAvailabilityBlock(svc availability.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.ActorRoleTutor {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only tutors manage availability"))
			return
		}
		blockID, err := uuid.Parse(chi.URLParam(r, "blockId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid block id"))
			return
		}

		if err := svc.DeleteBlock(r.Context(), actorID, blockID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
