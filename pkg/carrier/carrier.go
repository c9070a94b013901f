// Package carrier provides an abstraction layer for parcel carrier booking APIs.
package carrier

import (
	"context"
)

// Booker defines the interface a parcel carrier must implement to take part
// in a booking run.
type Booker interface {
	// Name returns the carrier record name in the order-management system (e.g., "DAO").
	Name() string

	// SetupKey returns the key of the carrier's setup object inside the
	// carrier data document (e.g., "DAOTransport").
	SetupKey() string

	// Book registers one parcel with the carrier. Carrier and transport
	// failures are reported through the result, never as a panic or error.
	Book(ctx context.Context, req *BookingRequest) BookingResult

	// GetLabel retrieves the printable label for a booked parcel.
	GetLabel(ctx context.Context, req *LabelRequest) LabelResult
}
