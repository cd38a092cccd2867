package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tutorlink/tutorlink-backend/pkg/db/models"
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/idempotency"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notification-worker"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and fans them out as in-app notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification fan-out consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unrecognized event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notifications, err := buildNotifications(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}

	for _, notification := range notifications {
		if err := c.repo.Create(ctx, notification); err != nil {
			c.logg.Error(logCtx, "notification write failed", err)
			_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
			return processResult{nack: true}
		}
	}

	c.logg.Info(c.logg.WithField(logCtx, "count", len(notifications)), "notifications created")
	return processResult{ack: true}
}

func buildNotifications(eventType enums.OutboxEventType, data json.RawMessage) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventBookingCreated:
		var payload payloads.BookingCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return bookingCreatedNotifications(payload), nil
	case enums.EventBookingStatusChanged:
		var payload payloads.BookingStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return bookingStatusNotifications(payload), nil
	case enums.EventPaymentCompleted:
		var payload payloads.PaymentCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return paymentCompletedNotifications(payload), nil
	case enums.EventPaymentFailed:
		var payload payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return paymentFailedNotifications(payload), nil
	case enums.EventPaymentRefunded:
		var payload payloads.PaymentRefundedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return paymentRefundedNotifications(payload), nil
	case enums.EventPayoutCreated:
		var payload payloads.PayoutCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payoutCreatedNotifications(payload), nil
	case enums.EventPayoutPaid:
		var payload payloads.PayoutPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payoutPaidNotifications(payload), nil
	case enums.EventDisputeOpened:
		var payload payloads.DisputeOpenedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return disputeOpenedNotifications(payload), nil
	case enums.EventDisputeResolved:
		var payload payloads.DisputeResolvedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return disputeResolvedNotifications(payload), nil
	default:
		return nil, nil
	}
}

func bookingCreatedNotifications(payload payloads.BookingCreatedEvent) []*models.Notification {
	minutes := int(payload.EndAt.Sub(payload.StartAt).Minutes())
	return []*models.Notification{{
		UserID:  payload.TutorID,
		Type:    enums.NotificationTypeBookingRequest,
		Title:   "New session request",
		Message: fmt.Sprintf("A student requested a %d minute session starting %s.", minutes, formatWhen(payload.StartAt)),
		Link:    bookingLink(payload.BookingID),
		Data:    bookingData(payload.BookingID),
	}}
}

func bookingStatusNotifications(payload payloads.BookingStatusChangedEvent) []*models.Notification {
	title, message := bookingStatusCopy(payload)
	var notifications []*models.Notification
	for _, userID := range counterparties(payload.ActorRole, payload.StudentID, payload.TutorID) {
		notifications = append(notifications, &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeBookingStatus,
			Title:   title,
			Message: message,
			Link:    bookingLink(payload.BookingID),
			Data:    bookingData(payload.BookingID),
		})
	}
	return notifications
}

func bookingStatusCopy(payload payloads.BookingStatusChangedEvent) (string, string) {
	var title, message string
	switch payload.NewStatus {
	case enums.BookingStatusConfirmed:
		title = "Booking confirmed"
		message = "Your session is confirmed."
	case enums.BookingStatusCompleted:
		title = "Session completed"
		message = "Your session was marked completed."
	case enums.BookingStatusCancelled:
		title = "Booking cancelled"
		message = "Your session was cancelled."
	case enums.BookingStatusRefunded:
		title = "Booking refunded"
		message = "Your session was refunded."
	default:
		title = "Booking updated"
		message = fmt.Sprintf("Your session moved to %s.", payload.NewStatus)
	}
	if payload.Reason != "" {
		message = fmt.Sprintf("%s Reason: %s", message, payload.Reason)
	}
	return title, strings.TrimSpace(message)
}

func paymentCompletedNotifications(payload payloads.PaymentCompletedEvent) []*models.Notification {
	return []*models.Notification{{
		UserID:  payload.StudentID,
		Type:    enums.NotificationTypePaymentUpdate,
		Title:   "Payment received",
		Message: fmt.Sprintf("Your payment of %s was received.", formatAmount(payload.AmountCents, payload.Currency)),
		Link:    bookingLink(payload.BookingID),
		Data:    bookingData(payload.BookingID),
	}}
}

func paymentFailedNotifications(payload payloads.PaymentFailedEvent) []*models.Notification {
	message := "Your payment could not be processed."
	if payload.Reason != "" {
		message = fmt.Sprintf("%s Reason: %s", message, payload.Reason)
	}
	return []*models.Notification{{
		UserID:  payload.StudentID,
		Type:    enums.NotificationTypePaymentUpdate,
		Title:   "Payment failed",
		Message: message,
		Link:    bookingLink(payload.BookingID),
		Data:    bookingData(payload.BookingID),
	}}
}

func paymentRefundedNotifications(payload payloads.PaymentRefundedEvent) []*models.Notification {
	return []*models.Notification{{
		UserID:  payload.StudentID,
		Type:    enums.NotificationTypePaymentUpdate,
		Title:   "Payment refunded",
		Message: fmt.Sprintf("A refund of %s is on its way back to you.", formatCents(payload.AmountCents)),
		Link:    bookingLink(payload.BookingID),
		Data:    bookingData(payload.BookingID),
	}}
}

func payoutCreatedNotifications(payload payloads.PayoutCreatedEvent) []*models.Notification {
	return []*models.Notification{{
		UserID:  payload.TutorID,
		Type:    enums.NotificationTypePayoutUpdate,
		Title:   "Earnings pending",
		Message: fmt.Sprintf("Earnings of %s are on hold until %s.", formatCents(payload.AmountCents), formatWhen(payload.HoldUntil)),
		Link:    payoutLink(payload.PayoutID),
		Data:    payoutData(payload.PayoutID),
	}}
}

func payoutPaidNotifications(payload payloads.PayoutPaidEvent) []*models.Notification {
	return []*models.Notification{{
		UserID:  payload.TutorID,
		Type:    enums.NotificationTypePayoutUpdate,
		Title:   "Payout sent",
		Message: fmt.Sprintf("Your payout of %s has been sent.", formatCents(payload.AmountCents)),
		Link:    payoutLink(payload.PayoutID),
		Data:    payoutData(payload.PayoutID),
	}}
}

func disputeOpenedNotifications(payload payloads.DisputeOpenedEvent) []*models.Notification {
	recipient := payload.TutorID
	if payload.RaisedByRole == enums.ActorRoleTutor {
		recipient = payload.StudentID
	}
	return []*models.Notification{{
		UserID:  recipient,
		Type:    enums.NotificationTypeDisputeUpdate,
		Title:   "Payment disputed",
		Message: fmt.Sprintf("A dispute was opened against one of your sessions. Reason: %s", payload.Reason),
		Link:    disputeLink(payload.DisputeID),
		Data:    disputeData(payload.DisputeID),
	}}
}

func disputeResolvedNotifications(payload payloads.DisputeResolvedEvent) []*models.Notification {
	message := "The dispute on your session has been resolved."
	switch payload.Resolution {
	case enums.DisputeResolutionStudentWins:
		message = "The dispute was resolved in the student's favor. The payment will be refunded."
	case enums.DisputeResolutionTutorWins:
		message = "The dispute was resolved in the tutor's favor."
	case enums.DisputeResolutionNoAction:
		message = "The dispute was closed with no action taken."
	}
	var notifications []*models.Notification
	for _, userID := range []uuid.UUID{payload.StudentID, payload.TutorID} {
		notifications = append(notifications, &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeDisputeUpdate,
			Title:   "Dispute resolved",
			Message: message,
			Link:    disputeLink(payload.DisputeID),
			Data:    disputeData(payload.DisputeID),
		})
	}
	return notifications
}

// counterparties returns who should hear about an actor's transition. Admin
// moves notify both sides.
func counterparties(actor enums.ActorRole, studentID, tutorID uuid.UUID) []uuid.UUID {
	switch actor {
	case enums.ActorRoleStudent:
		return []uuid.UUID{tutorID}
	case enums.ActorRoleTutor:
		return []uuid.UUID{studentID}
	default:
		return []uuid.UUID{studentID, tutorID}
	}
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%s %s", formatCents(cents), strings.ToUpper(currency))
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}

func formatWhen(at time.Time) string {
	return at.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func bookingLink(bookingID uuid.UUID) *string {
	return stringPtr(fmt.Sprintf("/bookings/%s", bookingID))
}

func bookingData(bookingID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"bookingId":%q}`, bookingID))
}

func payoutData(payoutID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"payoutId":%q}`, payoutID))
}

func disputeData(disputeID uuid.UUID) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"disputeId":%q}`, disputeID))
}

func payoutLink(payoutID uuid.UUID) *string {
	return stringPtr(fmt.Sprintf("/payouts/%s", payoutID))
}

func disputeLink(disputeID uuid.UUID) *string {
	return stringPtr(fmt.Sprintf("/disputes/%s", disputeID))
}

func stringPtr(value string) *string {
	return &value
}
