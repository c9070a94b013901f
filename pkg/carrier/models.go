package carrier

import (
	"fmt"
)

// Endpoint identifies which carrier booking service handles a parcel.
type Endpoint string

const (
	EndpointInternational Endpoint = "international"
	EndpointPickUpPoint   Endpoint = "pickup_point"
	EndpointDirect        Endpoint = "direct"
)

// Setup is the carrier account configuration loaded for a booking run.
type Setup struct {
	CustomerID  string
	AccessCode  string
	SenderID    string
	PaperFormat string
	Test        bool
}

// Validate checks that the setup carries the credentials every call needs.
func (s Setup) Validate() error {
	if s.CustomerID == "" {
		return fmt.Errorf("%w: customer id is empty", ErrInvalidSetup)
	}
	if s.AccessCode == "" {
		return fmt.Errorf("%w: access code is empty", ErrInvalidSetup)
	}
	return nil
}

// Address is a delivery address.
type Address struct {
	Addressee   string
	Street      string
	PostalCode  string
	City        string
	CountryCode string // ISO 3166-1 alpha-2, e.g., "DK", "SE"
}

// Contact is the optional contact person at the delivery address.
type Contact struct {
	Mobile string
	Email  string
}

// Dimensions are parcel dimensions in meters.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Parcel is one physical shipping container. Weight is in kilograms.
type Parcel struct {
	ID         string
	Weight     *float64
	Dimensions *Dimensions
}

// BookingRequest is the normalized request for booking one parcel.
type BookingRequest struct {
	Setup                Setup
	ShipmentNumber       string
	Recipient            Address
	Contact              *Contact
	DeliverToPickUpPoint bool
	PickUpPointID        string
	Parcel               Parcel
}

// LabelRequest is the normalized request for fetching a parcel label.
type LabelRequest struct {
	Setup          Setup
	TrackingNumber string
}

// BookingResult is the outcome of booking one parcel. Exactly one of
// TrackingNumber and Err is set.
type BookingResult struct {
	Endpoint       Endpoint
	TrackingNumber string
	Err            *CarrierError
}

// OK reports whether the carrier accepted the booking.
func (r BookingResult) OK() bool {
	return r.Err == nil && r.TrackingNumber != ""
}

// Reason returns the carrier's textual failure reason.
func (r BookingResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

// LabelResult is the outcome of a label retrieval. Exactly one of Content and
// Err is set.
type LabelResult struct {
	Content     []byte
	ContentType string
	Err         *CarrierError
}

// OK reports whether a printable label document was returned.
func (r LabelResult) OK() bool {
	return r.Err == nil && len(r.Content) > 0
}

// Reason returns the carrier's textual failure reason.
func (r LabelResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

// Booked returns a successful booking result.
func Booked(endpoint Endpoint, trackingNumber string) BookingResult {
	return BookingResult{Endpoint: endpoint, TrackingNumber: trackingNumber}
}

// Rejected returns a failed booking result.
func Rejected(endpoint Endpoint, err *CarrierError) BookingResult {
	return BookingResult{Endpoint: endpoint, Err: err}
}
