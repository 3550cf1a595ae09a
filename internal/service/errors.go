package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionLost means no usable sessionId exists for the (user, kind)
	// pair. The current run cannot continue; the user must restart.
	ErrSessionLost = errors.New("no active assessment session")

	// ErrSubmissionInFlight rejects a second answer submission while one is
	// pending. The analysis service is stateful per sessionId, so turns must
	// never interleave.
	ErrSubmissionInFlight = errors.New("an answer submission is already in flight")

	// ErrAssessmentComplete rejects answers submitted after completion
	ErrAssessmentComplete = errors.New("assessment is already complete")

	// ErrContextIncomplete means mandatory context fields are missing
	ErrContextIncomplete = errors.New("mandatory context fields are missing")
)

// TimeoutError means a remote call exceeded its class-specific budget.
// Session state is unaffected and the caller may retry.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis service call %s exceeded %s budget", e.Op, e.Budget)
}

// RemoteServiceError means the analysis service returned a non-2xx response
type RemoteServiceError struct {
	Status int
	Body   string
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("analysis service error %d: %s", e.Status, e.Body)
}
