package bookings

import (
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// allowedTransitions is the full booking state machine. Anything not listed
// here is rejected, including self-transitions. COMPLETED, CANCELLED and
// REFUNDED are terminal.
var allowedTransitions = map[enums.BookingStatus][]enums.BookingStatus{
	enums.BookingStatusPendingPayment: {
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusConfirmed: {
		enums.BookingStatusCompleted,
		enums.BookingStatusCancelled,
		enums.BookingStatusRefunded,
	},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to enums.BookingStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
