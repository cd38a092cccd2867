package enums

import "fmt"

// DisputeStatus tracks the review pipeline for a payment dispute.
type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusClosed      DisputeStatus = "closed"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusUnderReview,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsOpen reports whether the dispute still blocks a second dispute on the payment.
func (d DisputeStatus) IsOpen() bool {
	return d == DisputeStatusOpen || d == DisputeStatusUnderReview
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeResolution records the outcome assigned when a dispute is resolved.
type DisputeResolution string

const (
	DisputeResolutionStudentWins DisputeResolution = "STUDENT_WINS"
	DisputeResolutionTutorWins   DisputeResolution = "TUTOR_WINS"
	DisputeResolutionNoAction    DisputeResolution = "NO_ACTION"
)

var validDisputeResolutions = []DisputeResolution{
	DisputeResolutionStudentWins,
	DisputeResolutionTutorWins,
	DisputeResolutionNoAction,
}

// IsValid reports whether the value is a known DisputeResolution.
func (d DisputeResolution) IsValid() bool {
	for _, candidate := range validDisputeResolutions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeResolution converts raw input into a DisputeResolution.
func ParseDisputeResolution(value string) (DisputeResolution, error) {
	for _, candidate := range validDisputeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}
