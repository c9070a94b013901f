package carrier

import (
	"errors"
	"fmt"
)

// Error codes carried by CarrierError.
const (
	CodeRejected       = "REJECTED"
	CodeTransport      = "TRANSPORT"
	CodeLabel          = "LABEL"
	CodeInvalidRequest = "INVALID_REQUEST"
)

// CarrierError represents a failure reported by, or while talking to, a carrier.
type CarrierError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CarrierError) Unwrap() error {
	return e.Cause
}

// Is matches another CarrierError by code, and the package sentinels by kind.
func (e *CarrierError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Code == CodeRejected
	case ErrTransport:
		return e.Code == CodeTransport
	case ErrLabelNotAvailable:
		return e.Code == CodeLabel
	case ErrInvalidRequest:
		return e.Code == CodeInvalidRequest
	}
	t, ok := target.(*CarrierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCarrierError creates a new CarrierError.
func NewCarrierError(carrier, code, message string) *CarrierError {
	return &CarrierError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *CarrierError) WithCause(err error) *CarrierError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *CarrierError) WithStatusCode(code int) *CarrierError {
	e.StatusCode = code
	return e
}

// Sentinel errors for common booking scenarios.
var (
	// ErrRejected indicates the carrier refused to book the parcel.
	ErrRejected = errors.New("booking rejected")

	// ErrTransport indicates the carrier could not be reached or answered with a non-2xx status.
	ErrTransport = errors.New("carrier transport error")

	// ErrLabelNotAvailable indicates the carrier returned something other than a label document.
	ErrLabelNotAvailable = errors.New("label not available")

	// ErrInvalidSetup indicates the carrier setup lacks required credentials.
	ErrInvalidSetup = errors.New("invalid carrier setup")

	// ErrInvalidRequest indicates the booking request lacks required fields.
	ErrInvalidRequest = errors.New("invalid booking request")
)

