package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/internal/booking"
	"github.com/tournevent/daobooking/internal/telemetry"
	"github.com/tournevent/daobooking/pkg/carrier"
	"github.com/tournevent/daobooking/pkg/carrier/dao"
	"github.com/tournevent/daobooking/pkg/ims"
	"github.com/tournevent/daobooking/pkg/ims/mock"
)

const (
	documentID = int64(11)
	shipmentID = int64(22)
	eventID    = int64(33)
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

// scriptedBooker accepts or rejects parcels by parcel id.
type scriptedBooker struct {
	mu          sync.Mutex
	rejects     map[string]string
	labelErrors map[string]string
	books       []carrier.BookingRequest
	labels      []carrier.LabelRequest
}

func newScriptedBooker() *scriptedBooker {
	return &scriptedBooker{
		rejects:     make(map[string]string),
		labelErrors: make(map[string]string),
	}
}

func (b *scriptedBooker) Name() string     { return "DAO" }
func (b *scriptedBooker) SetupKey() string { return "DAOTransport" }

func (b *scriptedBooker) Book(ctx context.Context, req *carrier.BookingRequest) carrier.BookingResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.books = append(b.books, *req)
	if reason, ok := b.rejects[req.Parcel.ID]; ok {
		return carrier.Rejected(carrier.EndpointDirect, carrier.NewCarrierError("DAO", carrier.CodeRejected, reason))
	}
	return carrier.Booked(carrier.EndpointDirect, "TN-"+req.Parcel.ID)
}

func (b *scriptedBooker) GetLabel(ctx context.Context, req *carrier.LabelRequest) carrier.LabelResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.labels = append(b.labels, *req)
	for id, reason := range b.labelErrors {
		if req.TrackingNumber == "TN-"+id {
			return carrier.LabelResult{Err: carrier.NewCarrierError("DAO", carrier.CodeLabel, reason)}
		}
	}
	return carrier.LabelResult{Content: []byte("%PDF " + req.TrackingNumber), ContentType: "application/pdf"}
}

func (b *scriptedBooker) bookCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.books)
}

func floatPtr(v float64) *float64 { return &v }

func seedIMS(t *testing.T, containerIDs ...int64) *mock.Client {
	t.Helper()
	api := mock.New()
	api.AddCarrier(ims.Carrier{
		ID:           1,
		CarrierName:  "DAO",
		DataDocument: `{"DAOTransport":{"customerId":"1234","code":"secret","senderId":"S1","paper":"A4"}}`,
	})

	shipment := ims.Shipment{
		ID:             shipmentID,
		ShipmentNumber: "S-1001",
		DeliveryAddress: &ims.Address{
			Addressee:           "Jens Hansen",
			StreetNameAndNumber: "Vestergade 12",
			PostalCode:          "8000",
			CityTownOrVillage:   "Aarhus C",
			CountryCode:         "DK",
		},
		ContactPerson: &ims.ContactPerson{MobileNumber: "+4520304050", Email: "jens@example.dk"},
	}
	for _, id := range containerIDs {
		shipment.ShippingContainers = append(shipment.ShippingContainers, ims.ShippingContainer{
			ID:          id,
			GrossWeight: floatPtr(2.5),
			Dimensions:  &ims.Dimensions{Length: 0.3, Width: 0.2, Height: 0.1},
		})
	}
	api.AddShipment(shipment)
	return api
}

func newOrchestrator(api ims.API, booker carrier.Booker, metrics *telemetry.Metrics) *booking.Orchestrator {
	o := booking.New(booking.Config{}, api, booker, metrics, otelzap.New(zap.NewNop()), nil)
	o.SetClock(func() time.Time { return fixedNow })
	return o
}

func request() booking.Request {
	return booking.Request{
		DocumentID: documentID,
		ShipmentID: shipmentID,
		EventID:    eventID,
		DeviceName: "packing-station-3",
		UserID:     "anna",
	}
}

func errorMessages(msgs []ims.Message) []ims.Message {
	var out []ims.Message
	for _, m := range msgs {
		if m.MessageType == ims.MessageError {
			out = append(out, m)
		}
	}
	return out
}

func TestRun_AllContainersBooked(t *testing.T) {
	api := seedIMS(t, 501, 502, 503)
	booker := newScriptedBooker()

	result, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ims.WorkStatusDone, result.Status)
	assert.Equal(t, 3, result.Booked)
	assert.Zero(t, result.Rejected)
	require.Len(t, result.Labels, 3)
	assert.Equal(t, []ims.WorkStatus{ims.WorkStatusOnGoing, ims.WorkStatusDone}, api.StatusHistory(documentID))

	shipment, ok := api.Shipment(shipmentID)
	require.True(t, ok)
	for _, c := range shipment.ShippingContainers {
		require.NotNil(t, c.TrackingNumber, "container %d", c.ID)
		assert.Equal(t, fmt.Sprintf("TN-%d", c.ID), *c.TrackingNumber)
	}

	attachments := api.Attachments(documentID)
	require.Len(t, attachments, 3)
	assert.Equal(t, "SHIPPING_LABEL_501.pdf", attachments[0].FileName)
	assert.Equal(t, []byte("%PDF TN-501"), attachments[0].Content)

	msgs := api.Messages(eventID)
	require.Len(t, msgs, 1)
	assert.Equal(t, ims.MessageInfo, msgs[0].MessageType)
	assert.Equal(t, booking.LabelsReadyText, msgs[0].MessageText)
}

func TestRun_AllContainersRejected(t *testing.T) {
	api := seedIMS(t, 501, 502)
	booker := newScriptedBooker()
	booker.rejects["501"] = "Ugyldigt postnummer"
	booker.rejects["502"] = "Ugyldigt postnummer"

	result, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ims.WorkStatusFailed, result.Status)
	assert.Empty(t, result.Labels)
	assert.Equal(t, ims.WorkStatusFailed, api.DocumentStatus(documentID))
	assert.Empty(t, api.Attachments(documentID))
	assert.Empty(t, api.TrackingUpdates())
	assert.Empty(t, api.ShipmentUpdates())

	msgs := api.Messages(eventID)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, ims.MessageError, m.MessageType)
		assert.Equal(t, "Failed to register shipping container with DAO. DAO says: Ugyldigt postnummer", m.MessageText)
		assert.Equal(t, "DAOTransport", m.Source)
		assert.Equal(t, "packing-station-3", m.DeviceName)
		assert.Equal(t, "anna", m.UserID)
		assert.Equal(t, fixedNow, m.Time)
	}
}

func TestRun_MixedOutcomeKeepsOrder(t *testing.T) {
	api := seedIMS(t, 501, 502, 503, 504)
	booker := newScriptedBooker()
	booker.rejects["502"] = "Pakken er for tung"
	booker.labelErrors["504"] = "Label ikke fundet"

	result, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ims.WorkStatusDone, result.Status)
	require.Len(t, result.Labels, 2)
	assert.Equal(t, int64(501), result.Labels[0].ContainerID)
	assert.Equal(t, int64(503), result.Labels[1].ContainerID)

	attachments := api.Attachments(documentID)
	require.Len(t, attachments, 2)
	assert.Equal(t, "SHIPPING_LABEL_501.pdf", attachments[0].FileName)
	assert.Equal(t, "SHIPPING_LABEL_503.pdf", attachments[1].FileName)

	errs := errorMessages(api.Messages(eventID))
	require.Len(t, errs, 2)
	assert.Equal(t, "Failed to register shipping container with DAO. DAO says: Pakken er for tung", errs[0].MessageText)
	assert.Equal(t, "Failed to get labels from DAO. DAO says: Label ikke fundet", errs[1].MessageText)

	updates := api.TrackingUpdates()
	require.Len(t, updates, 3)
	assert.Equal(t, []int64{501, 503, 504}, []int64{updates[0].ContainerID, updates[1].ContainerID, updates[2].ContainerID})
}

func TestRun_ShipmentNumberFromLastBookedContainer(t *testing.T) {
	api := seedIMS(t, 501, 502, 503)
	booker := newScriptedBooker()
	booker.rejects["503"] = "nej"

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.NoError(t, err)

	updates := api.ShipmentUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, shipmentID, updates[0].ShipmentID)
	require.NotNil(t, updates[0].Fields.CarriersShipmentNumber)
	assert.Equal(t, "TN-502", *updates[0].Fields.CarriersShipmentNumber)
}

func TestRun_MissingCarrierSetup(t *testing.T) {
	api := mock.New()
	api.AddShipment(ims.Shipment{ID: shipmentID, DeliveryAddress: &ims.Address{CountryCode: "DK"}})
	booker := newScriptedBooker()

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.Error(t, err)

	var cfgErr *booking.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "DAO", cfgErr.Carrier)
	assert.ErrorIs(t, err, ims.ErrNotFound)
	assert.True(t, booking.IsConfigurationError(err))

	assert.Zero(t, booker.bookCount())
	assert.Equal(t, []ims.WorkStatus{ims.WorkStatusOnGoing}, api.StatusHistory(documentID))
}

func TestRun_InvalidCarrierSetup(t *testing.T) {
	api := seedIMS(t, 501)
	bad := mock.New()
	bad.AddCarrier(ims.Carrier{CarrierName: "DAO", DataDocument: `{"DAOTransport":{"customerId":""}}`})
	shipment, _ := api.Shipment(shipmentID)
	bad.AddShipment(shipment)
	booker := newScriptedBooker()

	_, err := newOrchestrator(bad, booker, nil).Run(context.Background(), request())
	assert.True(t, booking.IsConfigurationError(err))
	assert.ErrorIs(t, err, ims.ErrInvalidSetup)
	assert.Zero(t, booker.bookCount())
}

func TestRun_MissingDeliveryAddress(t *testing.T) {
	api := seedIMS(t)
	api.AddShipment(ims.Shipment{ID: shipmentID, ShippingContainers: []ims.ShippingContainer{{ID: 501}}})
	booker := newScriptedBooker()

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	assert.ErrorIs(t, err, booking.ErrMissingDeliveryAddress)
	assert.Zero(t, booker.bookCount())
}

func TestRun_UpstreamErrorLeavesDocumentOnGoing(t *testing.T) {
	api := seedIMS(t, 501, 502)
	upstream := &ims.UpstreamError{Method: "PATCH", Path: "/shippingContainers/501", StatusCode: 500, Body: "boom"}
	api.FailOn(mock.OpUpdateContainerTracking, upstream)
	booker := newScriptedBooker()

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.Error(t, err)

	got, ok := ims.IsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 500, got.StatusCode)
	assert.Equal(t, ims.WorkStatusOnGoing, api.DocumentStatus(documentID))
	assert.Equal(t, 1, booker.bookCount())
}

func TestRun_ShipmentReadFailure(t *testing.T) {
	api := seedIMS(t, 501)
	api.FailOn(mock.OpGetShipment, &ims.UpstreamError{Method: "GET", Path: "/shipments/22", StatusCode: 503})
	booker := newScriptedBooker()

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	_, ok := ims.IsUpstream(err)
	assert.True(t, ok)
	assert.Zero(t, booker.bookCount())
}

func TestRun_RebooksContainersWithTrackingNumbers(t *testing.T) {
	api := seedIMS(t, 501, 502)
	booker := newScriptedBooker()
	o := newOrchestrator(api, booker, nil)

	_, err := o.Run(context.Background(), request())
	require.NoError(t, err)
	_, err = o.Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 4, booker.bookCount())
	assert.Len(t, api.TrackingUpdates(), 4)
	assert.Len(t, api.Attachments(documentID), 4)
}

func TestRun_MapsShipmentIntoBookingRequest(t *testing.T) {
	api := seedIMS(t, 501)
	booker := newScriptedBooker()

	_, err := newOrchestrator(api, booker, nil).Run(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, booker.books, 1)
	req := booker.books[0]
	assert.Equal(t, "1234", req.Setup.CustomerID)
	assert.Equal(t, "secret", req.Setup.AccessCode)
	assert.Equal(t, "S1", req.Setup.SenderID)
	assert.Equal(t, "S-1001", req.ShipmentNumber)
	assert.Equal(t, "Vestergade 12", req.Recipient.Street)
	assert.Equal(t, "Aarhus C", req.Recipient.City)
	require.NotNil(t, req.Contact)
	assert.Equal(t, "+4520304050", req.Contact.Mobile)
	assert.Equal(t, "501", req.Parcel.ID)
	require.NotNil(t, req.Parcel.Dimensions)
	assert.Equal(t, 0.3, req.Parcel.Dimensions.Length)

	require.Len(t, booker.labels, 1)
	assert.Equal(t, "A4", booker.labels[0].Setup.PaperFormat)
	assert.Equal(t, "TN-501", booker.labels[0].TrackingNumber)
}

func TestRun_WithDAOClient(t *testing.T) {
	api := seedIMS(t, 501, 502)
	mockAPI := dao.NewMockAPIClient()
	client := dao.NewWithAPIClient(dao.Config{}, mockAPI, otelzap.New(zap.NewNop()), nil)

	result, err := newOrchestrator(api, client, nil).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, ims.WorkStatusDone, result.Status)
	require.Len(t, result.Labels, 2)

	calls := mockAPI.OrderCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, carrier.EndpointDirect, calls[0].Endpoint)
	require.NotNil(t, calls[0].Params.WeightGrams)
	assert.Equal(t, 2500, *calls[0].Params.WeightGrams)
	assert.Len(t, mockAPI.LabelCalls(), 2)
}

func TestRun_RecordsMetrics(t *testing.T) {
	api := seedIMS(t, 501, 502)
	booker := newScriptedBooker()
	booker.rejects["502"] = "nej"
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	_, err := newOrchestrator(api, booker, metrics).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("DAO", "DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ContainersTotal.WithLabelValues("DAO", booking.OutcomeBooked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ContainersTotal.WithLabelValues("DAO", booking.OutcomeRejected)))
}

func TestNew_CarrierNameOverride(t *testing.T) {
	api := seedIMS(t, 501)
	api.AddCarrier(ims.Carrier{
		CarrierName:  "DAO-test",
		DataDocument: `{"DAOTransport":{"customerId":"9","code":"x"}}`,
	})
	booker := newScriptedBooker()

	o := booking.New(booking.Config{CarrierName: "DAO-test"}, api, booker, nil, otelzap.New(zap.NewNop()), nil)
	_, err := o.Run(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, booker.books, 1)
	assert.Equal(t, "9", booker.books[0].Setup.CustomerID)
}
