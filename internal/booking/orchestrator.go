// Package booking books every shipping container of a shipment with a parcel
// carrier and writes the outcome back to the order-management system.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/internal/telemetry"
	"github.com/tournevent/daobooking/pkg/carrier"
	"github.com/tournevent/daobooking/pkg/ims"
)

// Container outcomes as recorded in metrics.
const (
	OutcomeBooked      = "booked"
	OutcomeRejected    = "rejected"
	OutcomeLabelFailed = "label_failed"
)

// LabelsReadyText is posted as an INFO message when a run ends DONE.
const LabelsReadyText = "Labels are ready"

// Request identifies one booking run.
type Request struct {
	DocumentID int64
	ShipmentID int64
	EventID    int64
	DeviceName string
	UserID     string
}

// Label is a printable shipping label for one container.
type Label struct {
	ContainerID int64
	FileName    string
	Content     []byte
}

// LabelFileName returns the attachment name for a container's label.
func LabelFileName(containerID int64) string {
	return fmt.Sprintf("SHIPPING_LABEL_%d.pdf", containerID)
}

// Result summarizes a finished run.
type Result struct {
	Status   ims.WorkStatus
	Labels   []Label
	Booked   int
	Rejected int
}

// Config holds orchestrator settings.
type Config struct {
	// CarrierName is the carrier record name in the order-management system.
	// Defaults to the carrier's own name.
	CarrierName string
}

// Orchestrator runs bookings for one carrier.
type Orchestrator struct {
	carrierName string
	api         ims.API
	carrier     carrier.Booker
	metrics     *telemetry.Metrics
	logger      *otelzap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// New creates an orchestrator. metrics and tracer may be nil.
func New(cfg Config, api ims.API, booker carrier.Booker, metrics *telemetry.Metrics, logger *otelzap.Logger, tracer trace.Tracer) *Orchestrator {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("booking")
	}
	name := cfg.CarrierName
	if name == "" {
		name = booker.Name()
	}
	return &Orchestrator{
		carrierName: name,
		api:         api,
		carrier:     booker,
		metrics:     metrics,
		logger:      logger,
		tracer:      tracer,
		now:         time.Now,
	}
}

// SetClock replaces the clock used for message timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Run books every container of the shipment in declared order.
//
// Container failures are reported as ERROR messages on the event and do not
// stop the loop. Errors from the order-management system, a missing carrier
// setup, or a shipment without delivery address end the run and are
// returned; the document then keeps the status it last had.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "booking.Run", trace.WithAttributes(
		attribute.String("booking.carrier", o.carrierName),
		attribute.Int64("booking.document_id", req.DocumentID),
		attribute.Int64("booking.shipment_id", req.ShipmentID),
		attribute.Int64("booking.event_id", req.EventID),
	))
	defer span.End()

	log := o.logger.Ctx(ctx)
	log.Info("Booking run started",
		zap.String("carrier", o.carrierName),
		zap.Int64("document_id", req.DocumentID),
		zap.Int64("shipment_id", req.ShipmentID),
		zap.Int64("event_id", req.EventID),
	)

	result, err := o.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.metrics.RecordRun(o.carrierName, "error")
		log.Error("Booking run aborted", zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.status", string(result.Status)),
		attribute.Int("booking.labels", len(result.Labels)),
	)
	o.metrics.RecordRun(o.carrierName, string(result.Status))
	log.Info("Booking run finished",
		zap.String("status", string(result.Status)),
		zap.Int("booked", result.Booked),
		zap.Int("rejected", result.Rejected),
		zap.Int("labels", len(result.Labels)),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Result, error) {
	if err := o.api.UpdateDocumentStatus(ctx, req.DocumentID, ims.WorkStatusOnGoing); err != nil {
		return nil, err
	}

	setup, err := ims.GetCarrierSetup(ctx, o.api, o.carrierName, o.carrier.SetupKey())
	if err != nil {
		if errors.Is(err, ims.ErrNotFound) || errors.Is(err, ims.ErrInvalidSetup) {
			return nil, &ConfigurationError{Carrier: o.carrierName, Cause: err}
		}
		return nil, err
	}

	shipment, err := o.api.GetShipment(ctx, req.ShipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.DeliveryAddress == nil {
		return nil, fmt.Errorf("shipment %d: %w", shipment.ID, ErrMissingDeliveryAddress)
	}

	result := &Result{}
	var lastTrackingNumber string

	for i := range shipment.ShippingContainers {
		outcome, err := o.bookContainer(ctx, req, setup, shipment, &shipment.ShippingContainers[i])
		if err != nil {
			return nil, err
		}
		if outcome.trackingNumber != "" {
			lastTrackingNumber = outcome.trackingNumber
			result.Booked++
		} else {
			result.Rejected++
		}
		if outcome.label != nil {
			result.Labels = append(result.Labels, *outcome.label)
		}
	}

	// The shipment keeps the tracking number of the last booked container.
	if lastTrackingNumber != "" {
		fields := ims.ShipmentFields{CarriersShipmentNumber: &lastTrackingNumber}
		if err := o.api.UpdateShipmentFields(ctx, shipment.ID, fields); err != nil {
			return nil, err
		}
	}

	if len(result.Labels) == 0 {
		result.Status = ims.WorkStatusFailed
		if err := o.api.UpdateDocumentStatus(ctx, req.DocumentID, ims.WorkStatusFailed); err != nil {
			return nil, err
		}
		return result, nil
	}

	for _, label := range result.Labels {
		attachment := ims.Attachment{FileName: label.FileName, Content: label.Content}
		if err := o.api.PostAttachment(ctx, req.DocumentID, attachment); err != nil {
			return nil, err
		}
	}

	result.Status = ims.WorkStatusDone
	if err := o.api.UpdateDocumentStatus(ctx, req.DocumentID, ims.WorkStatusDone); err != nil {
		return nil, err
	}
	if err := o.postMessage(ctx, req, ims.MessageInfo, LabelsReadyText); err != nil {
		return nil, err
	}
	return result, nil
}

// containerOutcome is what one container contributed to the run. A booked
// container has a tracking number; its label may still be missing.
type containerOutcome struct {
	trackingNumber string
	label          *Label
}

func (o *Orchestrator) bookContainer(ctx context.Context, req Request, setup *ims.CarrierSetup, shipment *ims.Shipment, container *ims.ShippingContainer) (containerOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "booking.Container", trace.WithAttributes(
		attribute.Int64("booking.container_id", container.ID),
	))
	defer span.End()

	log := o.logger.WithOptions(zap.Fields(zap.Int64("container_id", container.ID))).Ctx(ctx)
	if container.TrackingNumber != nil && *container.TrackingNumber != "" {
		log.Info("Container already has a tracking number, booking it again",
			zap.String("tracking_number", *container.TrackingNumber),
		)
	}

	start := time.Now()
	booking := o.carrier.Book(ctx, bookingRequest(setup, shipment, container))
	o.metrics.ObserveCarrierRequest(o.carrierName, "book", time.Since(start).Seconds())

	if !booking.OK() {
		log.Warn("Carrier rejected container",
			zap.String("endpoint", string(booking.Endpoint)),
			zap.String("reason", booking.Reason()),
		)
		span.SetStatus(codes.Error, "rejected")
		o.metrics.RecordContainer(o.carrierName, OutcomeRejected)
		text := fmt.Sprintf("Failed to register shipping container with %s. %s says: %s", o.carrier.Name(), o.carrier.Name(), booking.Reason())
		return containerOutcome{}, o.postMessage(ctx, req, ims.MessageError, text)
	}

	log.Info("Container booked",
		zap.String("endpoint", string(booking.Endpoint)),
		zap.String("tracking_number", booking.TrackingNumber),
	)
	if _, err := o.api.UpdateContainerTracking(ctx, container.ID, booking.TrackingNumber); err != nil {
		return containerOutcome{}, err
	}
	outcome := containerOutcome{trackingNumber: booking.TrackingNumber}

	start = time.Now()
	label := o.carrier.GetLabel(ctx, &carrier.LabelRequest{
		Setup:          carrierSetup(setup),
		TrackingNumber: booking.TrackingNumber,
	})
	o.metrics.ObserveCarrierRequest(o.carrierName, "label", time.Since(start).Seconds())

	if !label.OK() {
		log.Warn("Carrier returned no label", zap.String("reason", label.Reason()))
		span.SetStatus(codes.Error, "no label")
		o.metrics.RecordContainer(o.carrierName, OutcomeLabelFailed)
		text := fmt.Sprintf("Failed to get labels from %s. %s says: %s", o.carrier.Name(), o.carrier.Name(), label.Reason())
		return outcome, o.postMessage(ctx, req, ims.MessageError, text)
	}

	o.metrics.RecordContainer(o.carrierName, OutcomeBooked)
	outcome.label = &Label{
		ContainerID: container.ID,
		FileName:    LabelFileName(container.ID),
		Content:     label.Content,
	}
	return outcome, nil
}

func (o *Orchestrator) postMessage(ctx context.Context, req Request, messageType ims.MessageType, text string) error {
	return o.api.PostMessage(ctx, req.EventID, ims.Message{
		Time:        o.now(),
		Source:      o.carrier.SetupKey(),
		DeviceName:  req.DeviceName,
		UserID:      req.UserID,
		MessageType: messageType,
		MessageText: text,
	})
}

func carrierSetup(setup *ims.CarrierSetup) carrier.Setup {
	return carrier.Setup{
		CustomerID:  setup.CustomerID,
		AccessCode:  setup.Code,
		SenderID:    setup.SenderID,
		PaperFormat: setup.Paper,
		Test:        setup.Test,
	}
}

func bookingRequest(setup *ims.CarrierSetup, shipment *ims.Shipment, container *ims.ShippingContainer) *carrier.BookingRequest {
	addr := shipment.DeliveryAddress
	req := &carrier.BookingRequest{
		Setup:          carrierSetup(setup),
		ShipmentNumber: shipment.ShipmentNumber,
		Recipient: carrier.Address{
			Addressee:   addr.Addressee,
			Street:      addr.StreetNameAndNumber,
			PostalCode:  addr.PostalCode,
			City:        addr.CityTownOrVillage,
			CountryCode: addr.CountryCode,
		},
		DeliverToPickUpPoint: shipment.DeliverToPickUpPoint,
		PickUpPointID:        shipment.PickUpPointID,
		Parcel: carrier.Parcel{
			ID:     strconv.FormatInt(container.ID, 10),
			Weight: container.GrossWeight,
		},
	}
	if cp := shipment.ContactPerson; cp != nil {
		req.Contact = &carrier.Contact{Mobile: cp.MobileNumber, Email: cp.Email}
	}
	if d := container.Dimensions; d != nil {
		req.Parcel.Dimensions = &carrier.Dimensions{Length: d.Length, Width: d.Width, Height: d.Height}
	}
	return req
}
