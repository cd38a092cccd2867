package bookings

import (
	"testing"

	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

func TestCanTransitionCoversEveryPair(t *testing.T) {
	statuses := []enums.BookingStatus{
		enums.BookingStatusPendingPayment,
		enums.BookingStatusConfirmed,
		enums.BookingStatusCompleted,
		enums.BookingStatusCancelled,
		enums.BookingStatusRefunded,
	}

	allowed := map[enums.BookingStatus]map[enums.BookingStatus]bool{
		enums.BookingStatusPendingPayment: {
			enums.BookingStatusConfirmed: true,
			enums.BookingStatusCancelled: true,
		},
		enums.BookingStatusConfirmed: {
			enums.BookingStatusCompleted: true,
			enums.BookingStatusCancelled: true,
			enums.BookingStatusRefunded:  true,
		},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []enums.BookingStatus{
		enums.BookingStatusCompleted,
		enums.BookingStatusCancelled,
		enums.BookingStatusRefunded,
	}
	targets := []enums.BookingStatus{
		enums.BookingStatusPendingPayment,
		enums.BookingStatusConfirmed,
		enums.BookingStatusCompleted,
		enums.BookingStatusCancelled,
		enums.BookingStatusRefunded,
	}
	for _, from := range terminals {
		if !from.IsTerminal() {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range targets {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s allows transition to %s", from, to)
			}
		}
	}
}
