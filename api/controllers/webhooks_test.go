package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	stripewebhook "github.com/tutorlink/tutorlink-backend/internal/webhooks/stripe"
	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
)

type fakeVerifier struct {
	event stripe.Event
	err   error
}

func (f *fakeVerifier) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.err != nil {
		return stripe.Event{}, f.err
	}
	return f.event, nil
}

type fakeGuardStore struct {
	marks map[string]bool
}

func (f *fakeGuardStore) Get(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (f *fakeGuardStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.marks == nil {
		f.marks = map[string]bool{}
	}
	if f.marks[key] {
		return false, nil
	}
	f.marks[key] = true
	return true, nil
}

func (f *fakeGuardStore) IdempotencyKey(scope, id string) string {
	return "tl:idempotency:" + scope + ":" + id
}

func (f *fakeGuardStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.marks, key)
	}
	return nil
}

type fakeConfirmer struct {
	confirmed []string
	err       error
}

func (f *fakeConfirmer) ConfirmPayment(ctx context.Context, intentID string, actor *outbox.ActorRef) (*models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.confirmed = append(f.confirmed, intentID)
	return &models.Payment{ID: uuid.New(), GatewayIntentID: intentID}, nil
}

func (f *fakeConfirmer) FailPayment(ctx context.Context, intentID, reason string, actor *outbox.ActorRef) (*models.Payment, error) {
	return &models.Payment{ID: uuid.New(), GatewayIntentID: intentID}, nil
}

type stubPaymentFinder struct{}

func (stubPaymentFinder) FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return &models.Payment{ID: uuid.New()}, nil
}

type stubDisputeOpener struct{}

func (stubDisputeOpener) OpenChargeback(ctx context.Context, paymentID uuid.UUID, gatewayReason string) (*models.Dispute, error) {
	return &models.Dispute{ID: uuid.New()}, nil
}

func newWebhookTestParts(t *testing.T, proc *fakeConfirmer) (*stripewebhook.IdempotencyGuard, *stripewebhook.Service) {
	t.Helper()
	guard, err := stripewebhook.NewIdempotencyGuard(&fakeGuardStore{}, time.Hour, "stripe-webhook")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	svc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments:     proc,
		PaymentsRepo: stubPaymentFinder{},
		Disputes:     stubDisputeOpener{},
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return guard, svc
}

func succeededIntentEvent(id, intentID string) stripe.Event {
	return stripe.Event{
		ID:   id,
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{
			Raw: []byte(fmt.Sprintf(`{"id":%q,"status":"succeeded"}`, intentID)),
		},
	}
}

func TestStripeWebhookConfirmsIntent(t *testing.T) {
	proc := &fakeConfirmer{}
	guard, svc := newWebhookTestParts(t, proc)
	verifier := &fakeVerifier{event: succeededIntentEvent("evt_1", "pi_hook")}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()

	StripeWebhook(verifier, guard, svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(proc.confirmed) != 1 || proc.confirmed[0] != "pi_hook" {
		t.Fatalf("expected pi_hook confirmed, got %v", proc.confirmed)
	}
}

func TestStripeWebhookSkipsDuplicateDelivery(t *testing.T) {
	proc := &fakeConfirmer{}
	guard, svc := newWebhookTestParts(t, proc)
	verifier := &fakeVerifier{event: succeededIntentEvent("evt_dup", "pi_hook")}
	handler := StripeWebhook(verifier, guard, svc, testLogger())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
		req.Header.Set("Stripe-Signature", "t=1,v1=sig")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
	}

	if len(proc.confirmed) != 1 {
		t.Fatalf("expected a single confirmation, got %d", len(proc.confirmed))
	}
}

func TestStripeWebhookReleasesMarkOnFailure(t *testing.T) {
	proc := &fakeConfirmer{err: fmt.Errorf("db down")}
	guard, svc := newWebhookTestParts(t, proc)
	verifier := &fakeVerifier{event: succeededIntentEvent("evt_retry", "pi_hook")}
	handler := StripeWebhook(verifier, guard, svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatal("expected failure status on handler error")
	}

	// stripe redelivers; the released mark lets the retry through.
	proc.err = nil
	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(proc.confirmed) != 1 {
		t.Fatalf("expected the redelivery to confirm, got %d", len(proc.confirmed))
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	proc := &fakeConfirmer{}
	guard, svc := newWebhookTestParts(t, proc)
	verifier := &fakeVerifier{err: fmt.Errorf("no valid signature")}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	StripeWebhook(verifier, guard, svc, testLogger())(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(proc.confirmed) != 0 {
		t.Fatal("unverified event must not be processed")
	}
}
