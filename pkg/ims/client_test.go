package ims_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/pkg/ims"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// fakeIMS serves the token endpoint and records API requests.
type fakeIMS struct {
	server     *httptest.Server
	requests   chan recordedRequest
	tokenCalls atomic.Int32
	handler    func(w http.ResponseWriter, r *http.Request)
}

func newFakeIMS(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeIMS {
	t.Helper()
	f := &fakeIMS{requests: make(chan recordedRequest, 32), handler: handler}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			f.tokenCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"token_type":"Bearer","access_token":"tok-1","expires_in":3600}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.requests <- recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body}
		if f.handler != nil {
			f.handler(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIMS) client() *ims.HTTPClient {
	return ims.NewHTTPClient(ims.Config{
		APIURL:       f.server.URL + "/2/",
		AuthURL:      f.server.URL + "/oauth2/",
		ClientID:     "client",
		ClientSecret: "secret",
		APIKey:       "key-123",
		Timeout:      2 * time.Second,
	}, otelzap.New(zap.NewNop()))
}

func (f *fakeIMS) next(t *testing.T) recordedRequest {
	t.Helper()
	select {
	case r := <-f.requests:
		return r
	default:
		t.Fatal("no request recorded")
		return recordedRequest{}
	}
}

func TestHTTPClient_SetsAuthHeaders(t *testing.T) {
	f := newFakeIMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":7,"carrierName":"DAO","dataDocument":"{}"}]`)
	})

	carriers, err := f.client().ListCarriers(context.Background())
	require.NoError(t, err)
	require.Len(t, carriers, 1)
	assert.Equal(t, int64(7), carriers[0].ID)
	assert.Equal(t, "DAO", carriers[0].CarrierName)

	req := f.next(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/2/carriers", req.Path)
	assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
	assert.Equal(t, "key-123", req.Header.Get("x-api-key"))
}

func TestHTTPClient_ReusesToken(t *testing.T) {
	f := newFakeIMS(t, nil)
	c := f.client()

	require.NoError(t, c.UpdateDocumentStatus(context.Background(), 1, ims.WorkStatusOnGoing))
	require.NoError(t, c.UpdateDocumentStatus(context.Background(), 1, ims.WorkStatusDone))

	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestHTTPClient_GetShipment(t *testing.T) {
	f := newFakeIMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"id": 42,
			"shipmentNumber": "S-1001",
			"deliveryAddress": {"addressee":"Jens Hansen","streetNameAndNumber":"Vestergade 12","postalCode":"8000","cityTownOrVillage":"Aarhus C","countryCode":"DK"},
			"contactPerson": {"mobileNumber":"+4520304050","email":"jens@example.dk"},
			"deliverToPickUpPoint": true,
			"pickUpPointId": "1234",
			"shippingContainers": [{"id":501,"grossWeight":2.5,"dimensions":{"length":0.3,"width":0.2,"height":0.1}}]
		}`)
	})

	s, err := f.client().GetShipment(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "/2/shipments/42", f.next(t).Path)
	assert.Equal(t, "S-1001", s.ShipmentNumber)
	require.NotNil(t, s.DeliveryAddress)
	assert.Equal(t, "Aarhus C", s.DeliveryAddress.CityTownOrVillage)
	assert.True(t, s.DeliverToPickUpPoint)
	assert.Equal(t, "1234", s.PickUpPointID)
	require.Len(t, s.ShippingContainers, 1)
	require.NotNil(t, s.ShippingContainers[0].GrossWeight)
	assert.Equal(t, 2.5, *s.ShippingContainers[0].GrossWeight)
	assert.Nil(t, s.ShippingContainers[0].TrackingNumber)
}

func TestHTTPClient_UpdateContainerTracking(t *testing.T) {
	f := newFakeIMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":501,"trackingNumber":"00057123"}`)
	})

	container, err := f.client().UpdateContainerTracking(context.Background(), 501, "00057123")
	require.NoError(t, err)
	require.NotNil(t, container.TrackingNumber)
	assert.Equal(t, "00057123", *container.TrackingNumber)

	req := f.next(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/2/shippingContainers/501", req.Path)
	assert.JSONEq(t, `{"trackingNumber":"00057123"}`, string(req.Body))
}

func TestHTTPClient_UpdateShipmentFields(t *testing.T) {
	f := newFakeIMS(t, nil)
	tn := "00057999"

	require.NoError(t, f.client().UpdateShipmentFields(context.Background(), 42, ims.ShipmentFields{CarriersShipmentNumber: &tn}))

	req := f.next(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/2/shipments/42", req.Path)
	assert.JSONEq(t, `{"carriersShipmentNumber":"00057999"}`, string(req.Body))
}

func TestHTTPClient_UpdateDocumentStatus(t *testing.T) {
	f := newFakeIMS(t, nil)

	require.NoError(t, f.client().UpdateDocumentStatus(context.Background(), 9, ims.WorkStatusFailed))

	req := f.next(t)
	assert.Equal(t, "/2/documents/9", req.Path)
	assert.JSONEq(t, `{"workStatus":"FAILED"}`, string(req.Body))
}

func TestHTTPClient_PostAttachmentEncodesBase64(t *testing.T) {
	f := newFakeIMS(t, nil)
	content := []byte("%PDF-1.4 label")

	err := f.client().PostAttachment(context.Background(), 9, ims.Attachment{FileName: "SHIPPING_LABEL_501.pdf", Content: content})
	require.NoError(t, err)

	req := f.next(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/2/documents/9/attachments", req.Path)

	var body map[string]string
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "SHIPPING_LABEL_501.pdf", body["fileName"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(content), body["base64EncodedContent"])
}

func TestHTTPClient_PostMessage(t *testing.T) {
	f := newFakeIMS(t, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := f.client().PostMessage(context.Background(), 77, ims.Message{
		Time:        at,
		Source:      "DAOTransport",
		DeviceName:  "scanner-1",
		UserID:      "u-1",
		MessageType: ims.MessageError,
		MessageText: "Failed to register shipping container with DAO. DAO says: bad",
	})
	require.NoError(t, err)

	req := f.next(t)
	assert.Equal(t, "/2/events/77/messages", req.Path)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, float64(at.UnixMilli()), body["time"])
	assert.Equal(t, "DAOTransport", body["source"])
	assert.Equal(t, "scanner-1", body["deviceName"])
	assert.Equal(t, "u-1", body["userId"])
	assert.Equal(t, "ERROR", body["messageType"])
}

func TestHTTPClient_UpstreamError(t *testing.T) {
	f := newFakeIMS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})

	_, err := f.client().GetShipment(context.Background(), 42)
	require.Error(t, err)

	upstream, ok := ims.IsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Equal(t, "/shipments/42", upstream.Path)
	assert.Equal(t, "boom", upstream.Body)
}

func TestHTTPClient_TokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := ims.NewHTTPClient(ims.Config{
		APIURL:  server.URL,
		AuthURL: server.URL,
	}, otelzap.New(zap.NewNop()))

	_, err := c.ListCarriers(context.Background())
	upstream, ok := ims.IsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, "/token", upstream.Path)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
}
