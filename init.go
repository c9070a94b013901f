package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"

	"github.com/tournevent/daobooking/internal/booking"
	"github.com/tournevent/daobooking/internal/config"
	"github.com/tournevent/daobooking/internal/event"
	"github.com/tournevent/daobooking/internal/telemetry"
	"github.com/tournevent/daobooking/pkg/carrier/dao"
	"github.com/tournevent/daobooking/pkg/ims"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.Attributes())
	return shutdown, err
}

func initMetrics() (*prometheus.Registry, *telemetry.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, telemetry.NewMetrics(reg)
}

func initIMSClient(cfg *config.Config, logger *otelzap.Logger) *ims.HTTPClient {
	return ims.NewHTTPClient(ims.Config{
		APIURL:       cfg.IMSAPIURL,
		AuthURL:      cfg.IMSAuthURL,
		ClientID:     cfg.IMSClientID,
		ClientSecret: cfg.IMSClientSecret,
		APIKey:       cfg.IMSAPIKey,
		Timeout:      cfg.IMSTimeout,
	}, logger)
}

func initDAOClient(cfg *config.Config, logger *otelzap.Logger) *dao.Client {
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	return dao.New(dao.Config{
		BaseURL:         cfg.DAOBaseURL,
		Timeout:         cfg.DAOTimeout,
		DomesticCountry: cfg.DAODomesticCountry,
		UseMock:         cfg.DAOUseMock,
	}, logger, tracer)
}

// initHandler wires the order-management client, the DAO client and the
// orchestrator behind an event handler.
func initHandler(cfg *config.Config, metrics *telemetry.Metrics, logger *otelzap.Logger) *event.Handler {
	api := initIMSClient(cfg, logger)
	booker := initDAOClient(cfg, logger)
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	orchestrator := booking.New(booking.Config{CarrierName: cfg.DAOCarrierName}, api, booker, metrics, logger, tracer)
	return event.NewHandler(orchestrator, cfg.RunTimeout, metrics, logger)
}
