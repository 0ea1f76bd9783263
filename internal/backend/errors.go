package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrArtifactNotFound is returned when a finished job names no retrievable output.
var ErrArtifactNotFound = errors.New("artifact not found")

// SubmissionError is returned when the server rejects a job graph.
type SubmissionError struct {
	Status int
	Body   string
}

func (e *SubmissionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("submit rejected: http %d", e.Status)
	}
	return fmt.Sprintf("submit rejected: http %d: %s", e.Status, e.Body)
}

// BackendError carries an execution error the server reported for an accepted job.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return "generation error: " + e.Message }

// DownloadError is returned when artifact retrieval fails at the transport or
// HTTP level. Status is zero for transport failures.
type DownloadError struct {
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download artifact: http %d", e.Status)
	}
	return fmt.Sprintf("download artifact: %v", e.Err)
}

func (e *DownloadError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrArtifactNotFound
	}
	return e.Err
}
