package enums

import "fmt"

// BookingStatus tracks the lifecycle of a tutoring session booking.
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusRefunded       BookingStatus = "refunded"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPendingPayment,
	BookingStatusConfirmed,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusRefunded,
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from this status.
func (b BookingStatus) IsTerminal() bool {
	switch b {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}

// BookingPaymentStatus mirrors the charge state on the booking itself.
type BookingPaymentStatus string

const (
	BookingPaymentStatusUnpaid   BookingPaymentStatus = "unpaid"
	BookingPaymentStatusPaid     BookingPaymentStatus = "paid"
	BookingPaymentStatusRefunded BookingPaymentStatus = "refunded"
)

var validBookingPaymentStatuses = []BookingPaymentStatus{
	BookingPaymentStatusUnpaid,
	BookingPaymentStatusPaid,
	BookingPaymentStatusRefunded,
}

// IsValid reports whether the value is a known BookingPaymentStatus.
func (b BookingPaymentStatus) IsValid() bool {
	for _, candidate := range validBookingPaymentStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}
