package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tournevent/printship/internal/config"
	"github.com/tournevent/printship/internal/store/memory"
	"github.com/tournevent/printship/internal/store/postgres"
	"github.com/tournevent/printship/internal/telemetry"
	"github.com/tournevent/printship/pkg/shipper"
	"github.com/tournevent/printship/pkg/shipper/parcel"
	"github.com/tournevent/printship/pkg/shipper/southwest"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Version)
}

// quoteLogger logs warnings to stderr so CLI output stays clean.
func quoteLogger() *otelzap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zl, err := zcfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}
	return otelzap.New(zl)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

func initMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.DefaultRegisterer)
}

type stores struct {
	airports southwest.AirportRepository
	rates    shipper.RateStore
	pool     *pgxpool.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// initStores connects to Postgres when DATABASE_URL is set and falls back
// to in-memory stores otherwise.
func initStores(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			airports: memory.NewAirportStore(devAirports()...),
			rates:    memory.NewRateStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnIdleTime: cfg.DBMaxConnIdle,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.DBMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Database schema applied")
	}

	return &stores{
		airports: postgres.NewAirportStore(pool),
		rates:    postgres.NewRateStore(pool),
		pool:     pool,
	}, nil
}

// devAirports seeds the in-memory directory so Southwest Cargo can quote
// without a database.
func devAirports() []shipper.Airport {
	return []shipper.Airport{
		{ID: "swa-phx", Code: "PHX", Name: "Phoenix Sky Harbor", City: "Phoenix", State: "AZ", Carrier: southwest.CarrierName, IsActive: true},
		{ID: "swa-dal", Code: "DAL", Name: "Dallas Love Field", City: "Dallas", State: "TX", Carrier: southwest.CarrierName, IsActive: true},
		{ID: "swa-mdw", Code: "MDW", Name: "Chicago Midway", City: "Chicago", State: "IL", Carrier: southwest.CarrierName, IsActive: true},
		{ID: "swa-den", Code: "DEN", Name: "Denver International", City: "Denver", State: "CO", Carrier: southwest.CarrierName, IsActive: true},
		{ID: "swa-oak", Code: "OAK", Name: "Oakland International", City: "Oakland", State: "CA", Carrier: southwest.CarrierName, IsActive: true},
	}
}

func initShipperRegistry(cfg *config.Config, st *stores, metrics *telemetry.Metrics, logger *otelzap.Logger) (*shipper.Registry, *southwest.AirportCache) {
	registry := shipper.NewRegistry()
	tracer := otel.Tracer(cfg.ServiceName)

	airports := southwest.NewAirportCache(southwest.AirportCacheConfig{
		TTL:          cfg.SouthwestAirportCacheTTL,
		FailureRetry: cfg.SouthwestFailureRetry,
		Metrics:      metrics,
	}, st.airports, logger)

	// Disabled carriers are registered too so they can be enabled at runtime.
	register(registry, southwest.New(southwest.Config{
		MarkupPercentage: cfg.SouthwestMarkup,
		TrackingPrefix:   cfg.SouthwestTrackingPrefix,
		LabelBaseURL:     cfg.SouthwestLabelBaseURL,
	}, airports, logger, tracer), shipper.ModuleConfig{
		Enabled:  cfg.SouthwestEnabled,
		Priority: cfg.SouthwestPriority,
	}, logger)

	parcels := []struct {
		carrier  string
		enabled  bool
		priority int
	}{
		{parcel.FedEx, cfg.FedExEnabled, cfg.FedExPriority},
		{parcel.UPS, cfg.UPSEnabled, cfg.UPSPriority},
	}
	for _, p := range parcels {
		client := parcel.New(parcel.Config{
			Carrier: p.carrier,
			APIKey:  cfg.ParcelAPIKey,
			BaseURL: cfg.ParcelBaseURL,
			UseMock: cfg.ParcelUseMock,
		}, logger, tracer)
		register(registry, client, shipper.ModuleConfig{
			Enabled:  p.enabled,
			Priority: p.priority,
			TestMode: cfg.ParcelUseMock,
		}, logger)
	}

	return registry, airports
}

func register(registry *shipper.Registry, s shipper.Shipper, cfg shipper.ModuleConfig, logger *otelzap.Logger) {
	err := registry.Register(s, cfg)
	if err == nil {
		return
	}
	var cfgErr *shipper.ConfigurationError
	if errors.As(err, &cfgErr) {
		logger.Warn("Carrier misconfigured, registered disabled",
			zap.String("carrier", s.Name()),
			zap.String("reason", cfgErr.Reason),
		)
		return
	}
	logger.Error("Failed to register carrier", zap.String("carrier", s.Name()), zap.Error(err))
}
