package httpapi

import (
	"errors"
	"net/http"

	"comfyd/internal/manager"
	"comfyd/internal/params"
	"comfyd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case params.IsInvalid(err):
		return http.StatusBadRequest
	case manager.IsAlreadyActive(err):
		return http.StatusConflict
	case manager.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}
