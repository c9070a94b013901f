// Package ims provides a client for the order-management (IMS) REST API.
package ims

import (
	"context"
)

// API defines the order-management operations a booking run uses.
// This abstraction allows for in-memory fakes during testing
// and the HTTP client in production.
type API interface {
	// ListCarriers returns every configured carrier record.
	ListCarriers(ctx context.Context) ([]Carrier, error)

	// CreateCarrier stores a new carrier record.
	CreateCarrier(ctx context.Context, carrier Carrier) (*Carrier, error)

	// GetShipment returns the shipment detail with its containers.
	GetShipment(ctx context.Context, shipmentID int64) (*Shipment, error)

	// UpdateContainerTracking sets the tracking number of a shipping container.
	UpdateContainerTracking(ctx context.Context, containerID int64, trackingNumber string) (*ShippingContainer, error)

	// UpdateShipmentFields partially updates a shipment.
	UpdateShipmentFields(ctx context.Context, shipmentID int64, fields ShipmentFields) error

	// UpdateDocumentStatus sets the work status of a document.
	UpdateDocumentStatus(ctx context.Context, documentID int64, status WorkStatus) error

	// PostAttachment attaches a file to a document.
	PostAttachment(ctx context.Context, documentID int64, attachment Attachment) error

	// PostMessage appends an audit message to an event.
	PostMessage(ctx context.Context, eventID int64, message Message) error
}
