package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/internal/booking"
	"github.com/tournevent/daobooking/internal/telemetry"
)

// ResultDone is the completion token returned to the invoker.
const ResultDone = "done"

// Event source names used in logs and metrics.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
	SourceAMQP  = "amqp"
	SourceCLI   = "cli"
)

// Runner executes one booking run.
type Runner interface {
	Run(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Outcome is what a handled event reports back to its invoker.
type Outcome struct {
	RunID  string `json:"runId"`
	Result string `json:"result"`
	Status string `json:"status"`
	Labels int    `json:"labels"`
}

// Handler validates booking events and runs them with a bounded duration.
type Handler struct {
	runner  Runner
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *otelzap.Logger
}

// NewHandler creates a handler. A zero timeout means no limit; metrics may be nil.
func NewHandler(runner Runner, timeout time.Duration, metrics *telemetry.Metrics, logger *otelzap.Logger) *Handler {
	return &Handler{
		runner:  runner,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// HandlePayload decodes a raw event and handles it.
func (h *Handler) HandlePayload(ctx context.Context, source string, data []byte) (*Outcome, error) {
	req, err := Decode(data)
	if err != nil {
		h.metrics.RecordEventError(source)
		return nil, err
	}
	return h.Handle(ctx, source, req)
}

// Handle runs one booking request and returns the "done" token on completion.
// Container-level failures still complete; the run itself fails only on
// configuration or order-management errors.
//
// A started run is not cancelled with ctx: parcels already booked at the
// carrier must be recorded, so the run keeps ctx's values and is bounded by
// the handler timeout only.
func (h *Handler) Handle(ctx context.Context, source string, req BookingRequest) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		h.metrics.RecordEventError(source)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := h.logger.WithOptions(zap.Fields(
		zap.String("run_id", runID),
		zap.String("source", source),
	)).Ctx(ctx)
	log.Info("Booking event received",
		zap.Int64("document_id", req.DocumentID),
		zap.Int64("shipment_id", req.ShipmentID),
		zap.Int64("event_id", req.EventID),
	)

	result, err := h.runner.Run(ctx, req.BookingRun())
	if err != nil {
		h.metrics.RecordEventError(source)
		log.Error("Booking event failed", zap.Error(err))
		return nil, err
	}

	return &Outcome{
		RunID:  runID,
		Result: ResultDone,
		Status: string(result.Status),
		Labels: len(result.Labels),
	}, nil
}
