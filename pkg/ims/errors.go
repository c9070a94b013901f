package ims

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a lookup in the order-management system found nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSetup indicates a carrier data document is malformed or incomplete.
	ErrInvalidSetup = errors.New("invalid carrier setup")
)

// UpstreamError is returned for any non-2xx answer from the order-management API.
type UpstreamError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ims %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NotFoundError names the record a lookup could not find.
type NotFoundError struct {
	Kind string
	Key  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s by the name %s", e.Kind, e.Key)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsUpstream reports whether err is an UpstreamError, returning it if so.
func IsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}
