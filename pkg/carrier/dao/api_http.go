package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/daobooking/pkg/carrier"
)

// Service paths relative to the DAO base URL.
const (
	pathInternationalOrder = "DAODirekte/UdlandLeveringsOrdre.php"
	pathPickUpPointOrder   = "DAOPakkeshop/leveringsordre.php"
	pathDirectOrder        = "DAODirekte/leveringsordre.php"
	pathLabel              = "HentLabel.php"
)

const contentTypePDF = "application/pdf"

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &HTTPAPIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// EndpointPath returns the service path that handles the endpoint.
func EndpointPath(endpoint carrier.Endpoint) string {
	switch endpoint {
	case carrier.EndpointInternational:
		return pathInternationalOrder
	case carrier.EndpointPickUpPoint:
		return pathPickUpPointOrder
	default:
		return pathDirectOrder
	}
}

// CreateDeliveryOrder registers a parcel with DAO.
// GET <endpoint path>?kundeid=...&format=JSON
func (c *HTTPAPIClient) CreateDeliveryOrder(ctx context.Context, endpoint carrier.Endpoint, params *OrderParams) (*OrderResponse, error) {
	resp, err := c.doRequest(ctx, EndpointPath(endpoint), params.Values())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.parseError(resp)
	}

	var result OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &result, nil
}

// GetLabel retrieves a label from DAO.
// GET HentLabel.php?kundeid=...&stregkode=...&papir=...
func (c *HTTPAPIClient) GetLabel(ctx context.Context, params *LabelParams) (*LabelResponse, error) {
	resp, err := c.doRequest(ctx, pathLabel, params.Values())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.parseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read label data: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	result := &LabelResponse{ContentType: contentType}
	if isPDF(contentType) {
		result.Data = data
		return result, nil
	}

	// Anything but a PDF carries a JSON error object.
	var errResp OrderResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.ErrorText != "" {
		result.ErrorText = errResp.ErrorText
	} else {
		result.ErrorText = strings.TrimSpace(string(data))
	}
	return result, nil
}

func (c *HTTPAPIClient) doRequest(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/pdf")
	req.Header.Set("User-Agent", "daobooking/1.0")

	return c.httpClient.Do(req)
}

func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp OrderResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.ErrorText != "" {
		return &APIError{StatusCode: resp.StatusCode, Body: errResp.ErrorText}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == contentTypePDF
}

var _ APIClient = (*HTTPAPIClient)(nil)
