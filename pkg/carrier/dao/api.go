package dao

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tournevent/daobooking/pkg/carrier"
)

// APIClient defines the interface for DAO API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateDeliveryOrder registers a parcel with the booking service for the endpoint.
	CreateDeliveryOrder(ctx context.Context, endpoint carrier.Endpoint, params *OrderParams) (*OrderResponse, error)

	// GetLabel retrieves the printable label for a barcode.
	GetLabel(ctx context.Context, params *LabelParams) (*LabelResponse, error)
}

// ============================================================================
// API Request/Response Types (match the DAO query-string API)
// ============================================================================

// Fixed parameter values.
const (
	// IDRequirementDeliveryCode asks DAO to require a delivery code at hand-over.
	IDRequirementDeliveryCode = "Udleveringskode"

	// ResponseFormatJSON makes DAO answer in JSON instead of XML.
	ResponseFormatJSON = "JSON"

	// StatusOK is the status DAO reports for an accepted request.
	StatusOK = "OK"
)

// OrderParams are the query parameters of a delivery order request.
type OrderParams struct {
	CustomerID    string // kundeid
	Code          string // kode
	SenderID      string // afsenderid
	ShopID        string // shopid, pick-up point deliveries only
	PostalCode    string // postnr
	Address       string // adresse
	Name          string // navn
	Contact       *ContactParams
	WeightGrams   *int // vaegt
	Dimensions    *DimensionParams
	IDRequirement string // idkrav
	Invoice       string // faktura
	Test          bool
	Format        string
	International *InternationalParams
}

// ContactParams are the recipient's contact details.
type ContactParams struct {
	Mobile string // mobil
	Email  string // email
}

// DimensionParams are parcel dimensions in centimeters.
type DimensionParams struct {
	Length int // l
	Height int // h
	Width  int // b
}

// InternationalParams are only sent for destinations outside the domestic country.
type InternationalParams struct {
	City      string // by
	Country   string // land
	Reference string // reference
}

// Values encodes the parameters the way DAO expects them on the query string.
func (p *OrderParams) Values() url.Values {
	v := url.Values{}
	v.Set("kundeid", p.CustomerID)
	v.Set("kode", p.Code)
	v.Set("afsenderid", p.SenderID)
	if p.ShopID != "" {
		v.Set("shopid", p.ShopID)
	}
	v.Set("postnr", p.PostalCode)
	v.Set("adresse", p.Address)
	v.Set("navn", p.Name)
	if p.Contact != nil {
		v.Set("mobil", p.Contact.Mobile)
		v.Set("email", p.Contact.Email)
	}
	if p.WeightGrams != nil {
		v.Set("vaegt", strconv.Itoa(*p.WeightGrams))
	}
	if p.Dimensions != nil {
		v.Set("l", strconv.Itoa(p.Dimensions.Length))
		v.Set("h", strconv.Itoa(p.Dimensions.Height))
		v.Set("b", strconv.Itoa(p.Dimensions.Width))
	}
	v.Set("idkrav", p.IDRequirement)
	v.Set("faktura", p.Invoice)
	v.Set("test", boolFlag(p.Test))
	v.Set("format", p.Format)
	if p.International != nil {
		v.Set("by", p.International.City)
		v.Set("land", p.International.Country)
		v.Set("reference", p.International.Reference)
	}
	return v
}

// OrderResponse is the JSON answer to a delivery order request.
type OrderResponse struct {
	Status    string      `json:"status"`
	Result    OrderResult `json:"resultat"`
	ErrorText string      `json:"fejltekst"`
}

// OrderResult holds the data of an accepted order.
type OrderResult struct {
	Barcode string `json:"stregkode"`
}

// LabelParams are the query parameters of a label request.
type LabelParams struct {
	CustomerID string // kundeid
	Code       string // kode
	Barcode    string // stregkode
	Paper      string // papir
	Format     string
}

// Values encodes the label parameters for the query string.
func (p *LabelParams) Values() url.Values {
	v := url.Values{}
	v.Set("kundeid", p.CustomerID)
	v.Set("kode", p.Code)
	v.Set("stregkode", p.Barcode)
	v.Set("papir", p.Paper)
	v.Set("format", p.Format)
	return v
}

// LabelResponse is the raw answer to a label request. DAO answers with a PDF
// document on success and a JSON error object otherwise.
type LabelResponse struct {
	ContentType string
	Data        []byte
	ErrorText   string
}

// APIError represents a non-2xx HTTP answer from DAO.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
