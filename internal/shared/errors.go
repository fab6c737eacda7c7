package shared

import "errors"

var (
	// ErrVersionConflict indicates a concurrent writer won the race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrRetryExhausted indicates the bounded retry budget is spent.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
