package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrAttemptConflict is returned when a call attempt would break the
	// one-in-flight or unique sequence number rule.
	ErrAttemptConflict = errors.New("leads: call attempt conflict")

	// ErrIllegalTransition is returned for a status change the lifecycle forbids.
	ErrIllegalTransition = errors.New("leads: illegal status transition")

	// ErrInvalidQuery is returned for an eligibility query no scheduler may run.
	ErrInvalidQuery = errors.New("leads: invalid eligibility query")
)
