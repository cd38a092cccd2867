package enums

import "fmt"

// NotificationType categorizes in-app notifications shown to users.
type NotificationType string

const (
	NotificationTypeBookingRequest NotificationType = "booking_request"
	NotificationTypeBookingStatus  NotificationType = "booking_status"
	NotificationTypePaymentUpdate  NotificationType = "payment_update"
	NotificationTypePayoutUpdate   NotificationType = "payout_update"
	NotificationTypeDisputeUpdate  NotificationType = "dispute_update"
	NotificationTypeSystem         NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeBookingRequest,
	NotificationTypeBookingStatus,
	NotificationTypePaymentUpdate,
	NotificationTypePayoutUpdate,
	NotificationTypeDisputeUpdate,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
