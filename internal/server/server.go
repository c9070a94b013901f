package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/tournevent/daobooking/internal/event"
)

// maxEventSize bounds the request body of a booking event.
const maxEventSize = 1 << 20

// Server is the HTTP server for the booking service.
type Server struct {
	port     int
	handler  *event.Handler
	gatherer prometheus.Gatherer
	logger   *otelzap.Logger
	router   chi.Router
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance. Metrics are served from gatherer.
func New(cfg Config, handler *event.Handler, gatherer prometheus.Gatherer, logger *otelzap.Logger) *Server {
	s := &Server{
		port:     cfg.Port,
		handler:  handler,
		gatherer: gatherer,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/events/booking", s.handleBookingEvent)

	return r
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// A booking run may take up to RUN_TIMEOUT.
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleBookingEvent(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	log := s.logger.Ctx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read request body"})
		return
	}

	outcome, err := s.handler.HandlePayload(ctx, event.SourceHTTP, body)
	if err != nil {
		if errors.Is(err, event.ErrInvalidEvent) {
			log.Warn("Rejected booking event",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
