package availability

import "errors"

var (
	// ErrResourceNotFound is returned when a resource id does not resolve.
	ErrResourceNotFound = errors.New("availability: resource not found")

	// ErrInvalidDate is returned when a date string cannot be normalized.
	ErrInvalidDate = errors.New("availability: invalid date")
)
