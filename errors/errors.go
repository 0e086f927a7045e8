package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated  = fmt.Errorf("authentication required")
	ErrValidation       = fmt.Errorf("invalid payload")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrRoomAccessDenied = fmt.Errorf("invalid room password")
	ErrPersistence      = fmt.Errorf("persistence failure")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)

// Is reports whether err wraps target. Re-exported so callers never need to
// import both this package and the standard library one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MapToHTTPStatus translates domain sentinels into HTTP status codes.
// Unknown errors are reported as infrastructure failures.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRoomAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
