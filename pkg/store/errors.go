package store

import "errors"

var (
	// ErrAnswerNotFound is returned when a cached answer is unknown or
	// past its expiry. Distinct from storage failures.
	ErrAnswerNotFound = errors.New("answer expired or not found")
)
