package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/api/middleware"
	"github.com/tutorlink/tutorlink-backend/api/responses"
	"github.com/tutorlink/tutorlink-backend/api/validators"
	"github.com/tutorlink/tutorlink-backend/internal/disputes"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	pkgerrors "github.com/tutorlink/tutorlink-backend/pkg/errors"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
)

type openDisputeRequest struct {
	PaymentID   string  `json:"paymentId" validate:"required"`
	Reason      string  `json:"reason" validate:"required,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
}

// updateDisputeRequest moves a dispute forward. Either status alone
// (open -> under_review) or resolution with optional notes (admin verdict).
type updateDisputeRequest struct {
	Status     *string `json:"status"`
	Resolution *string `json:"resolution"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=4000"`
}

// OpenDispute lets a booking party contest a completed payment.
func OpenDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req openDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := uuid.Parse(req.PaymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		dispute, err := svc.OpenDispute(r.Context(), disputes.OpenDisputeInput{
			PaymentID:   paymentID,
			ActorID:     actorID,
			ActorRole:   role,
			Reason:      req.Reason,
			Description: req.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// GetDispute returns one dispute visible to the caller.
func GetDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := uuid.Parse(chi.URLParam(r, "disputeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute id"))
			return
		}

		dispute, err := svc.GetDispute(r.Context(), disputeID, actorID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// ListDisputes returns disputes visible to the caller.
func ListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := disputes.ListInput{ActorID: actorID, ActorRole: role}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseDisputeStatus(raw)
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

		items, err := svc.ListDisputes(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// UpdateDispute advances a dispute. A resolution field resolves it; a status
// field alone moves it to review.
func UpdateDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := uuid.Parse(chi.URLParam(r, "disputeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute id"))
			return
		}

		var req updateDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch {
		case req.Resolution != nil:
			resolution, err := enums.ParseDisputeResolution(*req.Resolution)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resolution"))
				return
			}
			dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
				DisputeID:  disputeID,
				Resolution: resolution,
				AdminNotes: req.AdminNotes,
				ActorID:    actorID,
				ActorRole:  role,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, dispute)

		case req.Status != nil:
			status, err := enums.ParseDisputeStatus(*req.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			dispute, err := svc.UpdateStatus(r.Context(), disputeID, status, actorID, role)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, dispute)

		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status or resolution is required"))
		}
	}
}
