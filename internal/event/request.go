// Package event receives shipment-booking events and runs them through the
// booking orchestrator.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tournevent/daobooking/internal/booking"
)

// ErrInvalidEvent is returned for events that cannot be decoded or lack ids.
var ErrInvalidEvent = errors.New("invalid booking event")

// BookingRequest is the payload of a shipment-booking event.
type BookingRequest struct {
	DocumentID int64  `json:"documentId"`
	ShipmentID int64  `json:"shipmentId"`
	EventID    int64  `json:"eventId"`
	DeviceName string `json:"deviceName,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

// envelope is the event-bus wrapper around a booking request.
type envelope struct {
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Detail     json.RawMessage `json:"detail"`
}

// Decode parses a booking request from either an event-bus envelope with a
// "detail" object or a bare request object.
func Decode(data []byte) (BookingRequest, error) {
	var req BookingRequest

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	body := data
	if detail := bytes.TrimSpace(env.Detail); len(detail) > 0 && !bytes.Equal(detail, []byte("null")) {
		body = detail
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// Validate checks that every id is present.
func (r BookingRequest) Validate() error {
	switch {
	case r.DocumentID <= 0:
		return fmt.Errorf("%w: documentId is missing", ErrInvalidEvent)
	case r.ShipmentID <= 0:
		return fmt.Errorf("%w: shipmentId is missing", ErrInvalidEvent)
	case r.EventID <= 0:
		return fmt.Errorf("%w: eventId is missing", ErrInvalidEvent)
	}
	return nil
}

// BookingRun converts the event into an orchestrator request.
func (r BookingRequest) BookingRun() booking.Request {
	return booking.Request{
		DocumentID: r.DocumentID,
		ShipmentID: r.ShipmentID,
		EventID:    r.EventID,
		DeviceName: r.DeviceName,
		UserID:     r.UserID,
	}
}
