package disputes

import (
	"github.com/tutorlink/tutorlink-backend/pkg/enums"
)

// allowedTransitions is the dispute pipeline. Only forward movement is
// permitted; the single shortcut is open -> resolved for administratively
// clear-cut cases.
var allowedTransitions = map[enums.DisputeStatus][]enums.DisputeStatus{
	enums.DisputeStatusOpen: {
		enums.DisputeStatusUnderReview,
		enums.DisputeStatusResolved,
	},
	enums.DisputeStatusUnderReview: {
		enums.DisputeStatusResolved,
	},
	enums.DisputeStatusResolved: {
		enums.DisputeStatusClosed,
	},
}

// CanTransition reports whether a dispute may move from one status to another.
func CanTransition(from, to enums.DisputeStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
