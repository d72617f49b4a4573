package pgjobq

import "errors"

var (
	// Validation errors. Raised before any write; never retried.
	ErrInvalidIdentifier  = errors.New("pgjobq: invalid schema or table identifier")
	ErrPriorityOutOfRange = errors.New("pgjobq: priority out of range")

	// ErrDuplicateID is returned by Schedule when the ID generator produced
	// an id that already exists in the table.
	ErrDuplicateID = errors.New("pgjobq: duplicate job id")

	// ErrNotAcquired is the state conflict returned by Complete and Fail
	// when the job does not exist, was never acquired, or is already
	// terminal. Distinct from the (nil, nil) absence result of Fetch.
	ErrNotAcquired = errors.New("pgjobq: job is not in acquired state")
)
