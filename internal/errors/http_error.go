package errors

import (
	stderrors "errors"
	"net/http"
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// Helper for common errors
var (
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }
	ErrBadRequest   = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
)

const supportMessage = "Something went wrong, please contact support"

// FromError maps a domain error to the response the caller should see.
// The second return value reports whether err is an internal defect that
// must be logged with full context.
func FromError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	switch {
	case stderrors.As(err, &httpErr):
		return httpErr, false
	case stderrors.Is(err, ErrCapacityExceeded):
		return NewHTTPError(http.StatusConflict, ErrCapacityExceeded.Error()), false
	case stderrors.Is(err, ErrAlreadyParked):
		return NewHTTPError(http.StatusConflict, ErrAlreadyParked.Error()), false
	case stderrors.Is(err, ErrAlreadyClosed):
		return NewHTTPError(http.StatusConflict, "Parking session is no longer valid"), false
	case stderrors.Is(err, ErrSessionNotFound):
		return NewHTTPError(http.StatusNotFound, "Parking session is no longer valid"), false
	case stderrors.Is(err, ErrAreaNotFound),
		stderrors.Is(err, ErrPaymentNotFound),
		stderrors.Is(err, ErrVehicleNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error()), false
	case stderrors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, err.Error()), false
	case stderrors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, err.Error()), false
	case stderrors.Is(err, ErrGatewayUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, "Online payment is not available right now"), false
	}
	return NewHTTPError(http.StatusInternalServerError, supportMessage), true
}
