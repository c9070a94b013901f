// Package mock provides an in-memory order-management API for testing.
package mock

import (
	"context"
	"sync"

	"github.com/tournevent/daobooking/pkg/ims"
)

// Operation names accepted by FailOn.
const (
	OpListCarriers            = "ListCarriers"
	OpCreateCarrier           = "CreateCarrier"
	OpGetShipment             = "GetShipment"
	OpUpdateContainerTracking = "UpdateContainerTracking"
	OpUpdateShipmentFields    = "UpdateShipmentFields"
	OpUpdateDocumentStatus    = "UpdateDocumentStatus"
	OpPostAttachment          = "PostAttachment"
	OpPostMessage             = "PostMessage"
)

// TrackingUpdate records one UpdateContainerTracking call.
type TrackingUpdate struct {
	ContainerID    int64
	TrackingNumber string
}

// ShipmentUpdate records one UpdateShipmentFields call.
type ShipmentUpdate struct {
	ShipmentID int64
	Fields     ims.ShipmentFields
}

// Client is an in-memory ims.API that records every write.
type Client struct {
	mu sync.Mutex

	carriers        []ims.Carrier
	shipments       map[int64]*ims.Shipment
	statusHistory   map[int64][]ims.WorkStatus
	attachments     map[int64][]ims.Attachment
	messages        map[int64][]ims.Message
	trackingUpdates []TrackingUpdate
	shipmentUpdates []ShipmentUpdate
	failures        map[string]error
	calls           []string
}

// New creates an empty in-memory client.
func New() *Client {
	return &Client{
		shipments:     make(map[int64]*ims.Shipment),
		statusHistory: make(map[int64][]ims.WorkStatus),
		attachments:   make(map[int64][]ims.Attachment),
		messages:      make(map[int64][]ims.Message),
		failures:      make(map[string]error),
	}
}

// AddCarrier seeds a carrier record.
func (c *Client) AddCarrier(carrier ims.Carrier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carriers = append(c.carriers, carrier)
}

// AddShipment seeds a shipment.
func (c *Client) AddShipment(shipment ims.Shipment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := shipment
	s.ShippingContainers = append([]ims.ShippingContainer(nil), shipment.ShippingContainers...)
	c.shipments[s.ID] = &s
}

// FailOn makes every later call of op return err.
func (c *Client) FailOn(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = err
}

// Shipment returns the stored copy of a shipment.
func (c *Client) Shipment(id int64) (ims.Shipment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shipments[id]
	if !ok {
		return ims.Shipment{}, false
	}
	out := *s
	out.ShippingContainers = append([]ims.ShippingContainer(nil), s.ShippingContainers...)
	return out, true
}

// Carriers returns the stored carrier records.
func (c *Client) Carriers() []ims.Carrier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ims.Carrier(nil), c.carriers...)
}

// DocumentStatus returns the last status written for a document.
func (c *Client) DocumentStatus(documentID int64) ims.WorkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := c.statusHistory[documentID]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

// StatusHistory returns every status written for a document, in order.
func (c *Client) StatusHistory(documentID int64) []ims.WorkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ims.WorkStatus(nil), c.statusHistory[documentID]...)
}

// Attachments returns the attachments posted to a document, in order.
func (c *Client) Attachments(documentID int64) []ims.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ims.Attachment(nil), c.attachments[documentID]...)
}

// Messages returns the messages posted to an event, in order.
func (c *Client) Messages(eventID int64) []ims.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ims.Message(nil), c.messages[eventID]...)
}

// TrackingUpdates returns every container tracking update, in order.
func (c *Client) TrackingUpdates() []TrackingUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TrackingUpdate(nil), c.trackingUpdates...)
}

// ShipmentUpdates returns every partial shipment update, in order.
func (c *Client) ShipmentUpdates() []ShipmentUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ShipmentUpdate(nil), c.shipmentUpdates...)
}

// Calls returns the names of all operations invoked, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// begin records the call and returns the configured failure, if any.
// The caller must hold c.mu.
func (c *Client) begin(op string) error {
	c.calls = append(c.calls, op)
	return c.failures[op]
}

// ListCarriers returns the seeded carriers.
func (c *Client) ListCarriers(ctx context.Context) ([]ims.Carrier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpListCarriers); err != nil {
		return nil, err
	}
	return append([]ims.Carrier(nil), c.carriers...), nil
}

// CreateCarrier stores a carrier record.
func (c *Client) CreateCarrier(ctx context.Context, carrier ims.Carrier) (*ims.Carrier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpCreateCarrier); err != nil {
		return nil, err
	}
	carrier.ID = int64(len(c.carriers) + 1)
	c.carriers = append(c.carriers, carrier)
	return &carrier, nil
}

// GetShipment returns a copy of a seeded shipment.
func (c *Client) GetShipment(ctx context.Context, shipmentID int64) (*ims.Shipment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpGetShipment); err != nil {
		return nil, err
	}
	s, ok := c.shipments[shipmentID]
	if !ok {
		return nil, &ims.UpstreamError{Method: "GET", Path: "/shipments", StatusCode: 404, Body: "shipment not found"}
	}
	out := *s
	out.ShippingContainers = append([]ims.ShippingContainer(nil), s.ShippingContainers...)
	return &out, nil
}

// UpdateContainerTracking sets the tracking number on the stored container.
func (c *Client) UpdateContainerTracking(ctx context.Context, containerID int64, trackingNumber string) (*ims.ShippingContainer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpUpdateContainerTracking); err != nil {
		return nil, err
	}
	c.trackingUpdates = append(c.trackingUpdates, TrackingUpdate{ContainerID: containerID, TrackingNumber: trackingNumber})

	for _, s := range c.shipments {
		for i := range s.ShippingContainers {
			if s.ShippingContainers[i].ID == containerID {
				tn := trackingNumber
				s.ShippingContainers[i].TrackingNumber = &tn
				out := s.ShippingContainers[i]
				return &out, nil
			}
		}
	}
	return &ims.ShippingContainer{ID: containerID, TrackingNumber: &trackingNumber}, nil
}

// UpdateShipmentFields applies a partial update to the stored shipment.
func (c *Client) UpdateShipmentFields(ctx context.Context, shipmentID int64, fields ims.ShipmentFields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpUpdateShipmentFields); err != nil {
		return err
	}
	c.shipmentUpdates = append(c.shipmentUpdates, ShipmentUpdate{ShipmentID: shipmentID, Fields: fields})
	if s, ok := c.shipments[shipmentID]; ok && fields.CarriersShipmentNumber != nil {
		v := *fields.CarriersShipmentNumber
		s.CarriersShipmentNumber = &v
	}
	return nil
}

// UpdateDocumentStatus records a document status.
func (c *Client) UpdateDocumentStatus(ctx context.Context, documentID int64, status ims.WorkStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpUpdateDocumentStatus); err != nil {
		return err
	}
	c.statusHistory[documentID] = append(c.statusHistory[documentID], status)
	return nil
}

// PostAttachment records an attachment.
func (c *Client) PostAttachment(ctx context.Context, documentID int64, attachment ims.Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpPostAttachment); err != nil {
		return err
	}
	c.attachments[documentID] = append(c.attachments[documentID], attachment)
	return nil
}

// PostMessage records a message.
func (c *Client) PostMessage(ctx context.Context, eventID int64, message ims.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(OpPostMessage); err != nil {
		return err
	}
	c.messages[eventID] = append(c.messages[eventID], message)
	return nil
}

var _ ims.API = (*Client)(nil)
