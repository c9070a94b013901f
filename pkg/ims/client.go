package ims

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// HTTPClient is the production implementation of API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	tokens     *TokenSource
	httpClient *http.Client
	logger     *otelzap.Logger
}

// Config holds configuration for the HTTP client.
type Config struct {
	APIURL       string
	AuthURL      string
	ClientID     string
	ClientSecret string
	APIKey       string
	Timeout      time.Duration
}

// NewHTTPClient creates a new HTTP-based client for the order-management API.
func NewHTTPClient(cfg Config, logger *otelzap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		tokens:     NewTokenSource(cfg.AuthURL, cfg.ClientID, cfg.ClientSecret, httpClient),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ============================================================================
// Wire types
// ============================================================================

type trackingPatch struct {
	TrackingNumber string `json:"trackingNumber"`
}

type workStatusPatch struct {
	WorkStatus WorkStatus `json:"workStatus"`
}

type attachmentBody struct {
	Base64EncodedContent []byte `json:"base64EncodedContent"` // encoding/json emits base64
	FileName             string `json:"fileName"`
}

type messageBody struct {
	Time        int64       `json:"time"`
	Source      string      `json:"source"`
	DeviceName  string      `json:"deviceName,omitempty"`
	UserID      string      `json:"userId,omitempty"`
	MessageType MessageType `json:"messageType"`
	MessageText string      `json:"messageText"`
}

// ============================================================================
// API Implementation
// ============================================================================

// ListCarriers returns all carrier records.
// GET /carriers
func (c *HTTPClient) ListCarriers(ctx context.Context) ([]Carrier, error) {
	var carriers []Carrier
	if err := c.do(ctx, http.MethodGet, "/carriers", nil, &carriers); err != nil {
		return nil, err
	}
	return carriers, nil
}

// CreateCarrier stores a carrier record.
// POST /carriers
func (c *HTTPClient) CreateCarrier(ctx context.Context, carrier Carrier) (*Carrier, error) {
	var created Carrier
	if err := c.do(ctx, http.MethodPost, "/carriers", carrier, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetShipment returns a shipment.
// GET /shipments/{id}
func (c *HTTPClient) GetShipment(ctx context.Context, shipmentID int64) (*Shipment, error) {
	var shipment Shipment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/shipments/%d", shipmentID), nil, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// UpdateContainerTracking sets a container's tracking number.
// PATCH /shippingContainers/{id}
func (c *HTTPClient) UpdateContainerTracking(ctx context.Context, containerID int64, trackingNumber string) (*ShippingContainer, error) {
	var container ShippingContainer
	path := fmt.Sprintf("/shippingContainers/%d", containerID)
	if err := c.do(ctx, http.MethodPatch, path, trackingPatch{TrackingNumber: trackingNumber}, &container); err != nil {
		return nil, err
	}
	return &container, nil
}

// UpdateShipmentFields partially updates a shipment.
// PATCH /shipments/{id}
func (c *HTTPClient) UpdateShipmentFields(ctx context.Context, shipmentID int64, fields ShipmentFields) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/shipments/%d", shipmentID), fields, nil)
}

// UpdateDocumentStatus sets a document's work status.
// PATCH /documents/{id}
func (c *HTTPClient) UpdateDocumentStatus(ctx context.Context, documentID int64, status WorkStatus) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/documents/%d", documentID), workStatusPatch{WorkStatus: status}, nil)
}

// PostAttachment attaches a file to a document.
// POST /documents/{id}/attachments
func (c *HTTPClient) PostAttachment(ctx context.Context, documentID int64, attachment Attachment) error {
	body := attachmentBody{
		Base64EncodedContent: attachment.Content,
		FileName:             attachment.FileName,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/documents/%d/attachments", documentID), body, nil)
}

// PostMessage appends a message to an event.
// POST /events/{id}/messages
func (c *HTTPClient) PostMessage(ctx context.Context, eventID int64, message Message) error {
	body := messageBody{
		Time:        message.Time.UnixMilli(),
		Source:      message.Source,
		DeviceName:  message.DeviceName,
		UserID:      message.UserID,
		MessageType: message.MessageType,
		MessageText: message.MessageText,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/messages", eventID), body, nil)
}

// ============================================================================
// HTTP Helpers
// ============================================================================

// do performs an authenticated JSON request and decodes the answer into out
// when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", token)
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ims %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Ctx(ctx).Error("IMS request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return &UpstreamError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	c.logger.Ctx(ctx).Debug("IMS request succeeded",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

var _ API = (*HTTPClient)(nil)
