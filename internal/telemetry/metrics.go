package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RunsTotal              *prometheus.CounterVec
	ContainersTotal        *prometheus.CounterVec
	CarrierRequestDuration *prometheus.HistogramVec
	EventErrors            *prometheus.CounterVec
}

// NewMetrics creates the service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_runs_total",
				Help: "Total number of booking runs by carrier and final document status",
			},
			[]string{"carrier", "status"},
		),
		ContainersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_containers_total",
				Help: "Total number of shipping containers processed by carrier and outcome",
			},
			[]string{"carrier", "outcome"},
		),
		CarrierRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "booking_carrier_request_duration_seconds",
				Help:    "Carrier API call duration in seconds by carrier and operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"carrier", "operation"},
		),
		EventErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_event_errors_total",
				Help: "Total booking events that could not be decoded or processed, by event source",
			},
			[]string{"source"},
		),
	}
}

// RecordRun records the final status of a booking run.
func (m *Metrics) RecordRun(carrier, status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(carrier, status).Inc()
}

// RecordContainer records the outcome for one shipping container.
func (m *Metrics) RecordContainer(carrier, outcome string) {
	if m == nil {
		return
	}
	m.ContainersTotal.WithLabelValues(carrier, outcome).Inc()
}

// ObserveCarrierRequest records the duration of a carrier call.
func (m *Metrics) ObserveCarrierRequest(carrier, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.CarrierRequestDuration.WithLabelValues(carrier, operation).Observe(seconds)
}

// RecordEventError records an event that failed to decode or run.
func (m *Metrics) RecordEventError(source string) {
	if m == nil {
		return
	}
	m.EventErrors.WithLabelValues(source).Inc()
}
