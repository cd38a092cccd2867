package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/internal/disputes"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

type fakeDisputeService struct {
	openFn         func(ctx context.Context, input disputes.OpenDisputeInput) (*models.Dispute, error)
	getFn          func(ctx context.Context, disputeID, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error)
	listFn         func(ctx context.Context, input disputes.ListInput) ([]models.Dispute, error)
	updateStatusFn func(ctx context.Context, disputeID uuid.UUID, newStatus enums.DisputeStatus, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error)
	resolveFn      func(ctx context.Context, input disputes.ResolveInput) (*models.Dispute, error)
}

func (f *fakeDisputeService) OpenDispute(ctx context.Context, input disputes.OpenDisputeInput) (*models.Dispute, error) {
	return f.openFn(ctx, input)
}

func (f *fakeDisputeService) OpenChargeback(ctx context.Context, paymentID uuid.UUID, gatewayReason string) (*models.Dispute, error) {
	return nil, nil
}

func (f *fakeDisputeService) GetDispute(ctx context.Context, disputeID, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error) {
	return f.getFn(ctx, disputeID, actorID, role)
}

func (f *fakeDisputeService) ListDisputes(ctx context.Context, input disputes.ListInput) ([]models.Dispute, error) {
	return f.listFn(ctx, input)
}

func (f *fakeDisputeService) UpdateStatus(ctx context.Context, disputeID uuid.UUID, newStatus enums.DisputeStatus, actorID uuid.UUID, role enums.ActorRole) (*models.Dispute, error) {
	return f.updateStatusFn(ctx, disputeID, newStatus, actorID, role)
}

func (f *fakeDisputeService) Resolve(ctx context.Context, input disputes.ResolveInput) (*models.Dispute, error) {
	return f.resolveFn(ctx, input)
}

func TestOpenDisputeCarriesActor(t *testing.T) {
	actorID := uuid.New()
	paymentID := uuid.New()
	var got disputes.OpenDisputeInput

	svc := &fakeDisputeService{
		openFn: func(_ context.Context, input disputes.OpenDisputeInput) (*models.Dispute, error) {
			got = input
			return &models.Dispute{ID: uuid.New()}, nil
		},
	}

	body := []byte(`{"paymentId":"` + paymentID.String() + `","reason":"session never happened"}`)
	req := authedRequest(http.MethodPost, "/api/v1/disputes", body, actorID, enums.ActorRoleStudent)
	rec := httptest.NewRecorder()

	OpenDispute(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.PaymentID != paymentID || got.ActorID != actorID || got.ActorRole != enums.ActorRoleStudent {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestUpdateDisputeResolutionWinsOverStatus(t *testing.T) {
	disputeID := uuid.New()
	var resolved *disputes.ResolveInput

	svc := &fakeDisputeService{
		resolveFn: func(_ context.Context, input disputes.ResolveInput) (*models.Dispute, error) {
			resolved = &input
			return &models.Dispute{ID: disputeID}, nil
		},
		updateStatusFn: func(context.Context, uuid.UUID, enums.DisputeStatus, uuid.UUID, enums.ActorRole) (*models.Dispute, error) {
			t.Fatal("status update should not run when a resolution is present")
			return nil, nil
		},
	}

	body := []byte(`{"status":"resolved","resolution":"STUDENT_WINS","adminNotes":"refund approved"}`)
	req := authedRequest(http.MethodPatch, "/api/v1/disputes/"+disputeID.String(), body, uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "disputeId", disputeID.String())
	rec := httptest.NewRecorder()

	UpdateDispute(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resolved == nil || resolved.Resolution != enums.DisputeResolutionStudentWins {
		t.Fatalf("unexpected resolve input %+v", resolved)
	}
	if resolved.AdminNotes == nil || *resolved.AdminNotes != "refund approved" {
		t.Fatalf("expected admin notes, got %v", resolved.AdminNotes)
	}
}

func TestUpdateDisputeStatusOnly(t *testing.T) {
	disputeID := uuid.New()
	var gotStatus enums.DisputeStatus

	svc := &fakeDisputeService{
		updateStatusFn: func(_ context.Context, _ uuid.UUID, newStatus enums.DisputeStatus, _ uuid.UUID, _ enums.ActorRole) (*models.Dispute, error) {
			gotStatus = newStatus
			return &models.Dispute{ID: disputeID}, nil
		},
	}

	req := authedRequest(http.MethodPatch, "/api/v1/disputes/"+disputeID.String(),
		[]byte(`{"status":"under_review"}`), uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "disputeId", disputeID.String())
	rec := httptest.NewRecorder()

	UpdateDispute(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotStatus != enums.DisputeStatusUnderReview {
		t.Fatalf("expected under_review, got %s", gotStatus)
	}
}

func TestUpdateDisputeRequiresAField(t *testing.T) {
	svc := &fakeDisputeService{}

	disputeID := uuid.New()
	req := authedRequest(http.MethodPatch, "/api/v1/disputes/"+disputeID.String(),
		[]byte(`{}`), uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "disputeId", disputeID.String())
	rec := httptest.NewRecorder()

	UpdateDispute(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
