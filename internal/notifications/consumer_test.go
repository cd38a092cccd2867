package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/idempotency"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

type recordingRepo struct {
	created []*models.Notification
	err     error
}

func (r *recordingRepo) Create(ctx context.Context, notification *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, notification)
	return nil
}

type fakeIdempotencyStore struct {
	keys map[string]string
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo repository) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&fakeIdempotencyStore{keys: map[string]string{}}, time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Level: zerolog.ErrorLevel})
	return &Consumer{repo: repo, idempotency: manager, logg: logg}
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		Attributes: map[string]string{"event_type": string(eventType)},
		Data:       body,
	}
}

func TestProcessBookingCreatedNotifiesTutor(t *testing.T) {
	tutorID := uuid.New()
	bookingID := uuid.New()
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo)

	msg := buildMessage(t, enums.EventBookingCreated, payloads.BookingCreatedEvent{
		BookingID:  bookingID,
		StudentID:  uuid.New(),
		TutorID:    tutorID,
		StartAt:    time.Now().Add(24 * time.Hour),
		EndAt:      time.Now().Add(25 * time.Hour),
		PriceCents: 5000,
		Currency:   "usd",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != tutorID {
		t.Fatalf("notification targeted %s, want tutor %s", created.UserID, tutorID)
	}
	if created.Type != enums.NotificationTypeBookingRequest {
		t.Fatalf("unexpected type %s", created.Type)
	}
	if created.Link == nil || *created.Link != "/bookings/"+bookingID.String() {
		t.Fatalf("unexpected link %v", created.Link)
	}
	var data struct {
		BookingID uuid.UUID `json:"bookingId"`
	}
	if err := json.Unmarshal(created.Data, &data); err != nil {
		t.Fatalf("notification data must be valid json: %v", err)
	}
	if data.BookingID != bookingID {
		t.Fatalf("data carries booking %s, want %s", data.BookingID, bookingID)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo)

	msg := buildMessage(t, enums.EventPayoutPaid, payloads.PayoutPaidEvent{
		PayoutID:    uuid.New(),
		TutorID:     uuid.New(),
		AmountCents: 4500,
		PaidAt:      time.Now().UTC(),
	})

	first := consumer.process(context.Background(), msg)
	second := consumer.process(context.Background(), msg)
	if !first.ack || !second.ack {
		t.Fatalf("expected both passes to ack, got %+v then %+v", first, second)
	}
	if len(repo.created) != 1 {
		t.Fatalf("duplicate delivery created %d notifications", len(repo.created))
	}
}

func TestProcessNacksAndRetriesOnWriteFailure(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	consumer := newTestConsumer(t, repo)

	msg := buildMessage(t, enums.EventPaymentFailed, payloads.PaymentFailedEvent{
		PaymentID: uuid.New(),
		BookingID: uuid.New(),
		StudentID: uuid.New(),
		TutorID:   uuid.New(),
		Reason:    "card_declined",
	})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack on write failure, got %+v", result)
	}

	// The idempotency mark must be released so the redelivery can succeed.
	repo.err = nil
	retry := consumer.process(context.Background(), msg)
	if !retry.ack {
		t.Fatalf("expected retry to ack, got %+v", retry)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification after retry, got %d", len(repo.created))
	}
}

func TestProcessSkipsUnknownEvent(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo)

	msg := &pubsub.Message{
		Attributes: map[string]string{"event_type": "something_else"},
		Data:       []byte("{}"),
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack for unknown event, got %+v", result)
	}
	if len(repo.created) != 0 {
		t.Fatalf("unknown event must not create notifications, got %d", len(repo.created))
	}
}

func TestBuildNotificationsStatusChangeTargets(t *testing.T) {
	studentID := uuid.New()
	tutorID := uuid.New()
	base := payloads.BookingStatusChangedEvent{
		BookingID: uuid.New(),
		StudentID: studentID,
		TutorID:   tutorID,
		OldStatus: enums.BookingStatusConfirmed,
		NewStatus: enums.BookingStatusCancelled,
		Reason:    "schedule conflict",
	}

	cases := []struct {
		name  string
		actor enums.ActorRole
		want  []uuid.UUID
	}{
		{name: "student cancel notifies tutor", actor: enums.ActorRoleStudent, want: []uuid.UUID{tutorID}},
		{name: "tutor cancel notifies student", actor: enums.ActorRoleTutor, want: []uuid.UUID{studentID}},
		{name: "admin move notifies both", actor: enums.ActorRoleAdmin, want: []uuid.UUID{studentID, tutorID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := base
			payload.ActorRole = tc.actor
			data, err := json.Marshal(payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			notifications, err := buildNotifications(enums.EventBookingStatusChanged, data)
			if err != nil {
				t.Fatalf("buildNotifications: %v", err)
			}
			if len(notifications) != len(tc.want) {
				t.Fatalf("expected %d recipients, got %d", len(tc.want), len(notifications))
			}
			for i, notification := range notifications {
				if notification.UserID != tc.want[i] {
					t.Fatalf("recipient %d is %s, want %s", i, notification.UserID, tc.want[i])
				}
				if notification.Type != enums.NotificationTypeBookingStatus {
					t.Fatalf("unexpected type %s", notification.Type)
				}
			}
		})
	}
}

func TestBuildNotificationsDisputeOpenedTargetsCounterparty(t *testing.T) {
	studentID := uuid.New()
	tutorID := uuid.New()
	payload := payloads.DisputeOpenedEvent{
		DisputeID:    uuid.New(),
		PaymentID:    uuid.New(),
		BookingID:    uuid.New(),
		StudentID:    studentID,
		TutorID:      tutorID,
		RaisedByID:   studentID,
		RaisedByRole: enums.ActorRoleStudent,
		Reason:       "session never happened",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	notifications, err := buildNotifications(enums.EventDisputeOpened, data)
	if err != nil {
		t.Fatalf("buildNotifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].UserID != tutorID {
		t.Fatalf("student-raised dispute must notify the tutor, got %+v", notifications)
	}
}

func TestBuildNotificationsDisputeResolvedNotifiesBoth(t *testing.T) {
	studentID := uuid.New()
	tutorID := uuid.New()
	payload := payloads.DisputeResolvedEvent{
		DisputeID:  uuid.New(),
		PaymentID:  uuid.New(),
		BookingID:  uuid.New(),
		StudentID:  studentID,
		TutorID:    tutorID,
		Resolution: enums.DisputeResolutionStudentWins,
		ResolvedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	notifications, err := buildNotifications(enums.EventDisputeResolved, data)
	if err != nil {
		t.Fatalf("buildNotifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected both parties notified, got %d", len(notifications))
	}
	if notifications[0].UserID != studentID || notifications[1].UserID != tutorID {
		t.Fatalf("unexpected recipients %s, %s", notifications[0].UserID, notifications[1].UserID)
	}
}
