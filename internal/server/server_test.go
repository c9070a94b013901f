package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/internal/booking"
	"github.com/tournevent/daobooking/internal/event"
	"github.com/tournevent/daobooking/internal/server"
	"github.com/tournevent/daobooking/internal/telemetry"
	"github.com/tournevent/daobooking/pkg/ims"
)

type runnerFunc func(ctx context.Context, req booking.Request) (*booking.Result, error)

func (f runnerFunc) Run(ctx context.Context, req booking.Request) (*booking.Result, error) {
	return f(ctx, req)
}

func newTestServer(t *testing.T, runner event.Runner) http.Handler {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	handler := event.NewHandler(runner, time.Second, metrics, logger)

	return server.New(server.Config{Port: 8080}, handler, reg, logger).Handler()
}

func okRunner(labels int) runnerFunc {
	return func(ctx context.Context, req booking.Request) (*booking.Result, error) {
		return &booking.Result{Status: ims.WorkStatusDone, Labels: make([]booking.Label, labels)}, nil
	}
}

func TestServer_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, okRunner(0)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_BookingEvent(t *testing.T) {
	var got booking.Request
	runner := runnerFunc(func(ctx context.Context, req booking.Request) (*booking.Result, error) {
		got = req
		return &booking.Result{Status: ims.WorkStatusDone, Labels: make([]booking.Label, 2)}, nil
	})

	body := `{"detail-type":"shipmentBookingRequested","detail":{"documentId":11,"shipmentId":22,"eventId":33,"deviceName":"station-3","userId":"anna"}}`
	req := httptest.NewRequest(http.MethodPost, "/events/booking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestServer(t, runner).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var outcome event.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
	assert.Equal(t, "done", outcome.Result)
	assert.Equal(t, 2, outcome.Labels)
	assert.Equal(t, "DONE", outcome.Status)

	assert.Equal(t, booking.Request{DocumentID: 11, ShipmentID: 22, EventID: 33, DeviceName: "station-3", UserID: "anna"}, got)
}

func TestServer_BookingEvent_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing ids", `{"documentId":11}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events/booking", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newTestServer(t, okRunner(1)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Contains(t, resp["error"], "invalid booking event")
		})
	}
}

func TestServer_BookingEvent_RunFailure(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, req booking.Request) (*booking.Result, error) {
		return nil, errors.New("ims GET /shipments/22: HTTP 503: unavailable")
	})

	req := httptest.NewRequest(http.MethodPost, "/events/booking", strings.NewReader(`{"documentId":11,"shipmentId":22,"eventId":33}`))
	rec := httptest.NewRecorder()
	newTestServer(t, runner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP 503")
}

func TestServer_BookingEvent_ClientDisconnectDoesNotCancelRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr error
	runner := runnerFunc(func(runCtx context.Context, req booking.Request) (*booking.Result, error) {
		cancel()
		runErr = runCtx.Err()
		return &booking.Result{Status: ims.WorkStatusDone}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/events/booking", strings.NewReader(`{"documentId":11,"shipmentId":22,"eventId":33}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	newTestServer(t, runner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runErr)
}

func TestServer_BookingEvent_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, okRunner(0)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/booking", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, okRunner(0))

	bad := httptest.NewRequest(http.MethodPost, "/events/booking", strings.NewReader(`{"documentId":11}`))
	h.ServeHTTP(httptest.NewRecorder(), bad)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `booking_event_errors_total{source="http"} 1`)
}
