package domain

import "errors"

var (
	// ErrUnauthorized means there is no active session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound covers records that are absent or hidden from the caller.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller lacks the role for an action.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
	// ErrPersistence wraps backing store write failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrNetwork wraps transport failures between client and backend.
	ErrNetwork = errors.New("network failure")
)

// ValidationError reports user input that cannot be accepted.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ActionResult is the structured result returned to the UI by actions.
type ActionResult struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
