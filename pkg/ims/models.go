package ims

import (
	"time"
)

// WorkStatus is the processing state of a document.
type WorkStatus string

const (
	WorkStatusOnGoing WorkStatus = "ON_GOING"
	WorkStatusDone    WorkStatus = "DONE"
	WorkStatusFailed  WorkStatus = "FAILED"
)

// MessageType is the severity of an event message.
type MessageType string

const (
	MessageInfo    MessageType = "INFO"
	MessageWarning MessageType = "WARNING"
	MessageError   MessageType = "ERROR"
)

// Carrier is a carrier record. DataDocument is a JSON object serialized as a
// string, holding carrier specific setup under a carrier specific key.
type Carrier struct {
	ID           int64  `json:"id,omitempty"`
	CarrierName  string `json:"carrierName"`
	DataDocument string `json:"dataDocument,omitempty"`
}

// Address is a shipment delivery address.
type Address struct {
	Addressee           string `json:"addressee"`
	StreetNameAndNumber string `json:"streetNameAndNumber"`
	PostalCode          string `json:"postalCode"`
	CityTownOrVillage   string `json:"cityTownOrVillage"`
	CountryCode         string `json:"countryCode"`
}

// ContactPerson is the person to notify about a delivery.
type ContactPerson struct {
	Name         string `json:"name,omitempty"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
}

// Dimensions are physical dimensions in meters.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ShippingContainer is one physical parcel of a shipment.
type ShippingContainer struct {
	ID             int64       `json:"id"`
	GrossWeight    *float64    `json:"grossWeight"`
	Dimensions     *Dimensions `json:"dimensions"`
	TrackingNumber *string     `json:"trackingNumber"`
}

// Shipment is the shipment detail including its containers, in declared order.
type Shipment struct {
	ID                     int64               `json:"id"`
	ShipmentNumber         string              `json:"shipmentNumber"`
	DeliveryAddress        *Address            `json:"deliveryAddress"`
	ContactPerson          *ContactPerson      `json:"contactPerson"`
	DeliverToPickUpPoint   bool                `json:"deliverToPickUpPoint"`
	PickUpPointID          string              `json:"pickUpPointId"`
	CarriersShipmentNumber *string             `json:"carriersShipmentNumber"`
	ShippingContainers     []ShippingContainer `json:"shippingContainers"`
}

// ShipmentFields is a partial shipment update. Nil fields are left untouched.
type ShipmentFields struct {
	CarriersShipmentNumber *string `json:"carriersShipmentNumber,omitempty"`
}

// Attachment is a file attached to a document.
type Attachment struct {
	FileName string
	Content  []byte
}

// Message is an audit entry attached to an event.
type Message struct {
	Time        time.Time
	Source      string
	DeviceName  string
	UserID      string
	MessageType MessageType
	MessageText string
}
