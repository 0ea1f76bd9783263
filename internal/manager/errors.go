package manager

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is the Outcome error of a job stopped by Cancel or Shutdown.
// It is not a failure.
var ErrCancelled = errors.New("job cancelled")

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("manager is shutting down")

// alreadyActiveError signals a second Start for a busy session (409).
type alreadyActiveError struct{ sessionID string }

func (e alreadyActiveError) Error() string { return "job already active for session " + e.sessionID }

// IsAlreadyActive reports whether err rejects a Start for a session that has
// a live job.
func IsAlreadyActive(err error) bool {
	var e alreadyActiveError
	return errors.As(err, &e)
}

// notFoundError signals that a session has no active job.
type notFoundError struct{ sessionID string }

func (e notFoundError) Error() string { return "no active job for session " + e.sessionID }

// IsNotFound reports whether err indicates a session without an active job.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// timeoutError is the Outcome error of a job that stayed non-terminal past
// the poll timeout.
type timeoutError struct {
	jobID string
	after time.Duration
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("job %s not finished after %s", e.jobID, e.after)
}

// IsTimeout reports whether err indicates poll timeout exhaustion.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}
