package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/internal/payments"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
)

type fakePaymentService struct {
	createIntentFn func(ctx context.Context, input payments.CreateIntentInput) (*payments.IntentOutput, error)
	confirmFn      func(ctx context.Context, intentID string, actor *outbox.ActorRef) (*models.Payment, error)
	getFn          func(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	processFn      func(ctx context.Context, input payments.ProcessPayoutInput) (*models.Payout, error)
	listPayoutsFn  func(ctx context.Context, input payments.ListPayoutsInput) ([]models.Payout, error)
	refundFn       func(ctx context.Context, input payments.RefundInput) (*models.Payment, error)
}

func (f *fakePaymentService) CreatePaymentIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.IntentOutput, error) {
	return f.createIntentFn(ctx, input)
}

func (f *fakePaymentService) ConfirmPayment(ctx context.Context, intentID string, actor *outbox.ActorRef) (*models.Payment, error) {
	return f.confirmFn(ctx, intentID, actor)
}

func (f *fakePaymentService) FailPayment(ctx context.Context, intentID, reason string, actor *outbox.ActorRef) (*models.Payment, error) {
	return nil, nil
}

func (f *fakePaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return f.getFn(ctx, paymentID)
}

func (f *fakePaymentService) ProcessPayout(ctx context.Context, input payments.ProcessPayoutInput) (*models.Payout, error) {
	return f.processFn(ctx, input)
}

func (f *fakePaymentService) ListPayouts(ctx context.Context, input payments.ListPayoutsInput) ([]models.Payout, error) {
	return f.listPayoutsFn(ctx, input)
}

func (f *fakePaymentService) ProcessRefund(ctx context.Context, input payments.RefundInput) (*models.Payment, error) {
	return f.refundFn(ctx, input)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreatePaymentIntentReturnsClientSecret(t *testing.T) {
	bookingID := uuid.New()
	actorID := uuid.New()
	var got payments.CreateIntentInput

	svc := &fakePaymentService{
		createIntentFn: func(_ context.Context, input payments.CreateIntentInput) (*payments.IntentOutput, error) {
			got = input
			return &payments.IntentOutput{
				PaymentID:    uuid.New(),
				IntentID:     "pi_test",
				ClientSecret: "pi_test_secret",
				Status:       enums.PaymentStatusPending,
			}, nil
		},
	}

	body, _ := json.Marshal(map[string]string{"bookingId": bookingID.String()})
	req := authedRequest(http.MethodPost, "/api/v1/payments/intent", body, actorID, enums.ActorRoleStudent)
	rec := httptest.NewRecorder()

	CreatePaymentIntent(svc, testLogger())(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.BookingID != bookingID || got.ActorID != actorID {
		t.Fatalf("unexpected input %+v", got)
	}

	var envelope struct {
		Data intentResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.ClientSecret != "pi_test_secret" {
		t.Fatalf("expected client secret in response, got %+v", envelope.Data)
	}
}

func TestConfirmPaymentCarriesActor(t *testing.T) {
	actorID := uuid.New()
	var gotIntent string
	var gotActor *outbox.ActorRef

	svc := &fakePaymentService{
		confirmFn: func(_ context.Context, intentID string, actor *outbox.ActorRef) (*models.Payment, error) {
			gotIntent, gotActor = intentID, actor
			return &models.Payment{ID: uuid.New()}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/payments/confirm",
		[]byte(`{"intentId":"pi_123"}`), actorID, enums.ActorRoleStudent)
	rec := httptest.NewRecorder()

	ConfirmPayment(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotIntent != "pi_123" {
		t.Fatalf("expected intent pi_123, got %q", gotIntent)
	}
	if gotActor == nil || gotActor.UserID != actorID || gotActor.Role != enums.ActorRoleStudent {
		t.Fatalf("unexpected actor %+v", gotActor)
	}
}

func TestRefundPaymentRequiresReason(t *testing.T) {
	svc := &fakePaymentService{
		refundFn: func(context.Context, payments.RefundInput) (*models.Payment, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	paymentID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/payments/"+paymentID.String()+"/refund",
		[]byte(`{"amountCents":100}`), uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "paymentId", paymentID.String())
	rec := httptest.NewRecorder()

	RefundPayment(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefundPaymentPassesPartialAmount(t *testing.T) {
	paymentID := uuid.New()
	var got payments.RefundInput

	svc := &fakePaymentService{
		refundFn: func(_ context.Context, input payments.RefundInput) (*models.Payment, error) {
			got = input
			return &models.Payment{ID: paymentID}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/payments/"+paymentID.String()+"/refund",
		[]byte(`{"amountCents":2500,"reason":"partial service"}`), uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "paymentId", paymentID.String())
	rec := httptest.NewRecorder()

	RefundPayment(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.AmountCents == nil || *got.AmountCents != 2500 {
		t.Fatalf("expected partial amount 2500, got %v", got.AmountCents)
	}
	if got.Reason != "partial service" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
}

func TestProcessPayoutPassesOverride(t *testing.T) {
	payoutID := uuid.New()
	var got payments.ProcessPayoutInput

	svc := &fakePaymentService{
		processFn: func(_ context.Context, input payments.ProcessPayoutInput) (*models.Payout, error) {
			got = input
			return &models.Payout{ID: payoutID}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/payouts/"+payoutID.String()+"/process",
		[]byte(`{"destination":"acct_tutor","adminOverride":true}`), uuid.New(), enums.ActorRoleAdmin)
	req = withURLParam(req, "payoutId", payoutID.String())
	rec := httptest.NewRecorder()

	ProcessPayout(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.PayoutID != payoutID || got.Destination != "acct_tutor" || !got.AdminOverride {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestListPayoutsParsesStatusFilter(t *testing.T) {
	var got payments.ListPayoutsInput
	svc := &fakePaymentService{
		listPayoutsFn: func(_ context.Context, input payments.ListPayoutsInput) ([]models.Payout, error) {
			got = input
			return []models.Payout{}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/payouts?status=pending", nil, uuid.New(), enums.ActorRoleTutor)
	rec := httptest.NewRecorder()

	ListPayouts(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Status == nil || *got.Status != enums.PayoutStatusPending {
		t.Fatalf("expected pending filter, got %v", got.Status)
	}
}
