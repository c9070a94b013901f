package booking

import (
	"errors"
	"fmt"
)

// ErrMissingDeliveryAddress is returned when the shipment has no delivery
// address. The run stops before any carrier call.
var ErrMissingDeliveryAddress = errors.New("shipment has no delivery address")

// ConfigurationError reports a missing or unusable carrier setup. It aborts
// the run before any container is touched.
type ConfigurationError struct {
	Carrier string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("carrier %s is not configured: %v", e.Carrier, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
