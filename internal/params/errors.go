package params

import "errors"

// ValidationError reports the first invalid field of a parameter set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid parameters: " + e.Field + " " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsInvalid reports whether err carries a *ValidationError.
func IsInvalid(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
