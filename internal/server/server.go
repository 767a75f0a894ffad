// Package server exposes the shipping calculator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/printship/internal/telemetry"
	"github.com/tournevent/printship/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CacheClearer is a cache flushed by the admin cache endpoint.
type CacheClearer interface {
	ClearCache()
}

// Config holds server configuration.
type Config struct {
	Port int

	// Metrics and Gatherer back /metrics; a nil Gatherer uses the default
	// Prometheus registry.
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer

	// Caches are flushed together with the quote cache.
	Caches []CacheClearer
}

// Server is the HTTP server for the shipping service.
type Server struct {
	port       int
	calculator *shipper.Calculator
	registry   *shipper.Registry
	caches     []CacheClearer
	metrics    *telemetry.Metrics
	gatherer   prometheus.Gatherer
	logger     *otelzap.Logger
}

// New creates a new server instance.
func New(cfg Config, calculator *shipper.Calculator, registry *shipper.Registry, logger *otelzap.Logger) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		port:       cfg.Port,
		calculator: calculator,
		registry:   registry,
		caches:     cfg.Caches,
		metrics:    cfg.Metrics,
		gatherer:   gatherer,
		logger:     logger,
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/rates", s.handleGetAllRates)
		r.Post("/rates/{carrier}", s.handleGetCarrierRates)
		r.Post("/labels", s.handleCreateLabel)
		r.Get("/tracking/{carrier}/{trackingNumber}", s.handleTrack)
		r.Delete("/shipments/{carrier}/{trackingNumber}", s.handleCancel)
		r.Post("/addresses/validate", s.handleValidateAddress)
		r.Put("/orders/{orderID}/rates", s.handleSaveOrderRates)
		r.Get("/orders/{orderID}/rates", s.handleGetOrderRates)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/carriers", s.handleListCarriers)
			r.Post("/carriers/{id}/enable", s.handleEnableCarrier)
			r.Post("/carriers/{id}/disable", s.handleDisableCarrier)
			r.Patch("/carriers/{id}", s.handleUpdateCarrier)
			r.Post("/cache/clear", s.handleClearCache)
		})
	})

	return gziphandler.GzipHandler(r)
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
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

// observe logs every request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if s.metrics != nil {
			s.metrics.RecordHTTP(route, r.Method, status)
		}
		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", ww.Header().Get("X-Request-ID")),
		)
	})
}

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}
