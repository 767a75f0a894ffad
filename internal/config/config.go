package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database. Without a URL the service runs on in-memory stores.
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	DBMaxConns      int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns      int32         `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConnIdle   time.Duration `envconfig:"DB_MAX_CONN_IDLE" default:"5m"`
	DBMigrate       bool          `envconfig:"DB_MIGRATE" default:"false"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	RateCacheTTL    time.Duration `envconfig:"RATE_CACHE_TTL" default:"5m"`

	// Southwest Cargo
	SouthwestEnabled         bool          `envconfig:"SOUTHWEST_ENABLED" default:"true"`
	SouthwestPriority        int           `envconfig:"SOUTHWEST_PRIORITY" default:"10"`
	SouthwestMarkup          float64       `envconfig:"SOUTHWEST_MARKUP_PERCENTAGE" default:"0"`
	SouthwestLabelBaseURL    string        `envconfig:"SOUTHWEST_LABEL_BASE_URL" default:"https://labels.swacargo.local"`
	SouthwestTrackingPrefix  string        `envconfig:"SOUTHWEST_TRACKING_PREFIX" default:"SWC"`
	SouthwestAirportCacheTTL time.Duration `envconfig:"SOUTHWEST_AIRPORT_CACHE_TTL" default:"1h"`
	SouthwestFailureRetry    time.Duration `envconfig:"SOUTHWEST_AIRPORT_FAILURE_RETRY" default:"1m"`

	// Parcel gateway (FedEx, UPS)
	ParcelAPIKey  string `envconfig:"PARCEL_API_KEY"`
	ParcelBaseURL string `envconfig:"PARCEL_BASE_URL" default:"https://api.parcelgateway.com"`
	ParcelUseMock bool   `envconfig:"PARCEL_USE_MOCK" default:"false"`

	FedExEnabled  bool `envconfig:"FEDEX_ENABLED" default:"true"`
	FedExPriority int  `envconfig:"FEDEX_PRIORITY" default:"20"`

	UPSEnabled  bool `envconfig:"UPS_ENABLED" default:"true"`
	UPSPriority int  `envconfig:"UPS_PRIORITY" default:"30"`

	// Quote CLI
	MaxBoxWeight float64 `envconfig:"MAX_BOX_WEIGHT" default:"50"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"printship"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables. Variables from the
// file named by CONFIG_FILE, or from .env when CONFIG_FILE is unset, are
// loaded first without overriding the process environment.
func Load() (*Config, error) {
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", file, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("database.enabled", c.DatabaseURL != ""),
		attribute.Bool("southwest.enabled", c.SouthwestEnabled),
		attribute.Bool("fedex.enabled", c.FedExEnabled),
		attribute.Bool("ups.enabled", c.UPSEnabled),
		attribute.Bool("parcel.mock", c.ParcelUseMock),
	}
}
