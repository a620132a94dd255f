package apperr

import (
	"errors"
	"net/http"
)

// Error is a fault with a fixed HTTP status. Domain services return
// these; the handler layer translates them without inspecting the
// message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Validation reports malformed or out-of-range input (400).
func Validation(message string) error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// Authentication reports a missing, invalid, or expired credential (401).
func Authentication(message string) error {
	return &Error{Status: http.StatusUnauthorized, Message: message}
}

// NotFound reports a missing resource (404). Ownership violations use
// this as well, so a foreign id is indistinguishable from a missing one.
func NotFound(message string) error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// RateLimit reports an exceeded request quota (429).
func RateLimit(message string) error {
	return &Error{Status: http.StatusTooManyRequests, Message: message}
}

// Status returns the HTTP status for err. Unrecognized errors map
// to 500.
func Status(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// IsFault reports whether err carries a typed fault.
func IsFault(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}
