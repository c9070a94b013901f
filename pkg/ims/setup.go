package ims

import (
	"context"
	"encoding/json"
	"fmt"
)

// CarrierSetup is the carrier account configuration stored under a
// carrier-specific key in a carrier record's data document.
type CarrierSetup struct {
	CustomerID string `json:"customerId"`
	Code       string `json:"code"`
	SenderID   string `json:"senderId"`
	Paper      string `json:"paper,omitempty"`
	Test       bool   `json:"test,omitempty"`
}

// Validate checks the fields every carrier call needs.
func (s *CarrierSetup) Validate() error {
	if s.CustomerID == "" {
		return fmt.Errorf("%w: customerId is missing", ErrInvalidSetup)
	}
	if s.Code == "" {
		return fmt.Errorf("%w: code is missing", ErrInvalidSetup)
	}
	return nil
}

// FindCarrier returns the carrier with the exact name.
func FindCarrier(carriers []Carrier, carrierName string) (*Carrier, error) {
	for i := range carriers {
		if carriers[i].CarrierName == carrierName {
			return &carriers[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "carrier", Key: carrierName}
}

// ParseCarrierSetup extracts and validates the setup stored under setupKey.
func ParseCarrierSetup(carrier *Carrier, setupKey string) (*CarrierSetup, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(carrier.DataDocument), &doc); err != nil {
		return nil, fmt.Errorf("%w: carrier %s data document: %v", ErrInvalidSetup, carrier.CarrierName, err)
	}

	raw, ok := doc[setupKey]
	if !ok {
		return nil, fmt.Errorf("%w: carrier %s has no %s setup", ErrInvalidSetup, carrier.CarrierName, setupKey)
	}

	var setup CarrierSetup
	if err := json.Unmarshal(raw, &setup); err != nil {
		return nil, fmt.Errorf("%w: carrier %s %s setup: %v", ErrInvalidSetup, carrier.CarrierName, setupKey, err)
	}
	if err := setup.Validate(); err != nil {
		return nil, fmt.Errorf("carrier %s: %w", carrier.CarrierName, err)
	}
	return &setup, nil
}

// GetCarrierSetup fetches all carriers, finds carrierName and parses its setup.
func GetCarrierSetup(ctx context.Context, api API, carrierName, setupKey string) (*CarrierSetup, error) {
	carriers, err := api.ListCarriers(ctx)
	if err != nil {
		return nil, err
	}

	carrier, err := FindCarrier(carriers, carrierName)
	if err != nil {
		return nil, err
	}

	return ParseCarrierSetup(carrier, setupKey)
}

// NewCarrierRecord builds a carrier record holding setup under setupKey.
func NewCarrierRecord(carrierName, setupKey string, setup CarrierSetup) (Carrier, error) {
	doc, err := json.Marshal(map[string]CarrierSetup{setupKey: setup})
	if err != nil {
		return Carrier{}, fmt.Errorf("failed to marshal carrier setup: %w", err)
	}
	return Carrier{
		CarrierName:  carrierName,
		DataDocument: string(doc),
	}, nil
}

// InstallCarrier creates the carrier record unless one with the same name
// already exists. It reports whether a record was created.
func InstallCarrier(ctx context.Context, api API, carrierName, setupKey string, setup CarrierSetup) (bool, error) {
	carriers, err := api.ListCarriers(ctx)
	if err != nil {
		return false, err
	}
	if _, err := FindCarrier(carriers, carrierName); err == nil {
		return false, nil
	}

	record, err := NewCarrierRecord(carrierName, setupKey, setup)
	if err != nil {
		return false, err
	}
	if _, err := api.CreateCarrier(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}
