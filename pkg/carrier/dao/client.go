// Package dao provides integration with the DAO parcel booking API.
package dao

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/tournevent/daobooking/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	// CarrierName is the name of the DAO carrier record in the order-management system.
	CarrierName = "DAO"

	// SetupKey is the key of the DAO setup inside the carrier data document.
	SetupKey = "DAOTransport"

	// DefaultDomesticCountry is the country DAO treats as domestic.
	DefaultDomesticCountry = "DK"

	// DefaultPaper is the label paper size used when the setup names none.
	DefaultPaper = "100x150"
)

// Config holds DAO configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	DomesticCountry string
	UseMock         bool // When true, uses mock API client
}

// Client is the DAO booking client.
// It implements the carrier.Booker interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new DAO client.
// If cfg.UseMock is true, it uses a mock API client.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new DAO client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.DomesticCountry == "" {
		cfg.DomesticCountry = DefaultDomesticCountry
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("dao")
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return CarrierName
}

// SetupKey returns the key of the DAO setup in the carrier data document.
func (c *Client) SetupKey() string {
	return SetupKey
}

// SelectEndpoint picks the booking service for a destination. A foreign
// destination always wins over pick-up point delivery. An empty country code
// is not domestic and books internationally.
func SelectEndpoint(countryCode, domesticCountry string, deliverToPickUpPoint bool) carrier.Endpoint {
	switch {
	case !strings.EqualFold(countryCode, domesticCountry):
		return carrier.EndpointInternational
	case deliverToPickUpPoint:
		return carrier.EndpointPickUpPoint
	default:
		return carrier.EndpointDirect
	}
}

// Book registers one parcel with DAO.
func (c *Client) Book(ctx context.Context, req *carrier.BookingRequest) carrier.BookingResult {
	endpoint := SelectEndpoint(req.Recipient.CountryCode, c.config.DomesticCountry, req.DeliverToPickUpPoint)

	ctx, span := c.tracer.Start(ctx, "dao.Book", trace.WithAttributes(
		attribute.String("dao.endpoint", string(endpoint)),
		attribute.String("dao.parcel_id", req.Parcel.ID),
	))
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return carrier.Rejected(endpoint, carrier.NewCarrierError(CarrierName, carrier.CodeInvalidRequest, err.Error()).WithCause(err))
	}

	c.logger.Ctx(ctx).Info("Calling DAO",
		zap.String("endpoint", EndpointPath(endpoint)),
		zap.String("parcel_id", req.Parcel.ID),
		zap.String("country_code", req.Recipient.CountryCode),
	)

	params := c.orderParams(req)
	resp, err := c.apiClient.CreateDeliveryOrder(ctx, endpoint, params)
	if err != nil {
		c.logger.Ctx(ctx).Error("DAO API error", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return carrier.Rejected(endpoint, transportError(err))
	}

	if resp.Status != StatusOK {
		span.SetStatus(codes.Error, "rejected")
		return carrier.Rejected(endpoint, carrier.NewCarrierError(CarrierName, carrier.CodeRejected, resp.ErrorText))
	}
	if resp.Result.Barcode == "" {
		span.SetStatus(codes.Error, "missing barcode")
		return carrier.Rejected(endpoint, carrier.NewCarrierError(CarrierName, carrier.CodeRejected, "no barcode in accepted order"))
	}

	span.SetAttributes(attribute.String("dao.barcode", resp.Result.Barcode))
	return carrier.Booked(endpoint, resp.Result.Barcode)
}

// GetLabel retrieves the label for a booked parcel.
func (c *Client) GetLabel(ctx context.Context, req *carrier.LabelRequest) carrier.LabelResult {
	ctx, span := c.tracer.Start(ctx, "dao.GetLabel", trace.WithAttributes(
		attribute.String("dao.barcode", req.TrackingNumber),
	))
	defer span.End()

	paper := req.Setup.PaperFormat
	if paper == "" {
		paper = DefaultPaper
	}

	resp, err := c.apiClient.GetLabel(ctx, &LabelParams{
		CustomerID: req.Setup.CustomerID,
		Code:       req.Setup.AccessCode,
		Barcode:    req.TrackingNumber,
		Paper:      paper,
		Format:     ResponseFormatJSON,
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("DAO API error", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return carrier.LabelResult{Err: transportError(err)}
	}

	if !isPDF(resp.ContentType) || len(resp.Data) == 0 {
		c.logger.Ctx(ctx).Warn("DAO returned no label document",
			zap.String("content_type", resp.ContentType),
			zap.String("error_text", resp.ErrorText),
		)
		span.SetStatus(codes.Error, "no label")
		return carrier.LabelResult{
			ContentType: resp.ContentType,
			Err:         carrier.NewCarrierError(CarrierName, carrier.CodeLabel, resp.ErrorText),
		}
	}

	return carrier.LabelResult{
		Content:     resp.Data,
		ContentType: resp.ContentType,
	}
}

// orderParams converts a normalized booking request into DAO parameters.
func (c *Client) orderParams(req *carrier.BookingRequest) *OrderParams {
	params := &OrderParams{
		CustomerID:    req.Setup.CustomerID,
		Code:          req.Setup.AccessCode,
		SenderID:      req.Setup.SenderID,
		PostalCode:    req.Recipient.PostalCode,
		Address:       req.Recipient.Street,
		Name:          req.Recipient.Addressee,
		IDRequirement: IDRequirementDeliveryCode,
		Invoice:       req.ShipmentNumber,
		Test:          req.Setup.Test,
		Format:        ResponseFormatJSON,
	}

	if req.DeliverToPickUpPoint {
		params.ShopID = req.PickUpPointID
	}

	if req.Contact != nil {
		params.Contact = &ContactParams{
			Mobile: req.Contact.Mobile,
			Email:  req.Contact.Email,
		}
	}

	if req.Parcel.Weight != nil {
		grams := kilogramsToGrams(*req.Parcel.Weight)
		params.WeightGrams = &grams
	}

	if d := req.Parcel.Dimensions; d != nil {
		params.Dimensions = &DimensionParams{
			Length: metersToCentimeters(d.Length),
			Height: metersToCentimeters(d.Height),
			Width:  metersToCentimeters(d.Width),
		}
	}

	// DAO rejects city, country and reference on domestic orders.
	if !strings.EqualFold(req.Recipient.CountryCode, c.config.DomesticCountry) {
		params.International = &InternationalParams{
			City:      req.Recipient.City,
			Country:   req.Recipient.CountryCode,
			Reference: req.ShipmentNumber,
		}
	}

	return params
}

func validateRequest(req *carrier.BookingRequest) error {
	return req.Setup.Validate()
}

func transportError(err error) *carrier.CarrierError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return carrier.NewCarrierError(CarrierName, carrier.CodeTransport, apiErr.Body).
			WithStatusCode(apiErr.StatusCode).
			WithCause(err)
	}
	return carrier.NewCarrierError(CarrierName, carrier.CodeTransport, "DAO could not be reached").
		WithCause(err)
}

func kilogramsToGrams(kg float64) int {
	return int(math.Round(kg * 1000))
}

func metersToCentimeters(m float64) int {
	return int(math.Round(m * 100))
}

var _ carrier.Booker = (*Client)(nil)
