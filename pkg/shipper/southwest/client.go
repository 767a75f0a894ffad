// Package southwest implements Southwest Cargo air-cargo shipping. Goods are
// collected by the customer at an airport cargo terminal, so rates depend on a
// chosen pickup location and availability on the airport directory.
package southwest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tournevent/printship/pkg/shipper"
	"github.com/tournevent/printship/pkg/shipper/tier"
	"github.com/tournevent/printship/pkg/shipper/weight"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CarrierName is the registry id of Southwest Cargo.
const CarrierName = "southwest"

// Service codes.
const (
	ServicePickup = "pickup"
	ServiceDash   = "dash"
)

// ConfigKeyMarkup is the module config key overriding MarkupPercentage.
const ConfigKeyMarkup = "markupPercentage"

const (
	defaultTrackingPrefix = "SWC"
	defaultLabelBaseURL   = "https://labels.swacargo.local"
	trackingSuffixLen     = 6
)

// DefaultPickupTable is the economy airport-to-airport table.
func DefaultPickupTable() tier.Table {
	return tier.Table{
		{MaxWeight: 50, BaseRate: 80},
		{MaxWeight: tier.Unbounded, BaseRate: 102, AdditionalPerPound: 0.42, Basis: tier.BasisZero},
	}
}

// DefaultDashTable is the guaranteed next-flight table.
func DefaultDashTable() tier.Table {
	return tier.Table{
		{MaxWeight: 50, BaseRate: 120, HandlingFee: 10},
		{MaxWeight: tier.Unbounded, BaseRate: 145, AdditionalPerPound: 0.62, HandlingFee: 10, Basis: tier.BasisZero},
	}
}

// Config holds Southwest Cargo configuration.
type Config struct {
	MarkupPercentage float64
	PickupTable      tier.Table // nil uses DefaultPickupTable
	DashTable        tier.Table // nil uses DefaultDashTable
	Currency         string
	TrackingPrefix   string
	LabelBaseURL     string
	Now              func() time.Time
}

type service struct {
	code       string
	name       string
	days       int
	guaranteed bool
	table      tier.Table
}

// Client is the Southwest Cargo shipper client.
type Client struct {
	config   Config
	services []service
	airports *AirportCache
	logger   *otelzap.Logger
	tracer   trace.Tracer

	mu     sync.RWMutex
	markup float64 // percent
}

// New creates a new Southwest Cargo client. airports may be nil, in which
// case Validate reports a configuration error.
func New(cfg Config, airports *AirportCache, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.PickupTable == nil {
		cfg.PickupTable = DefaultPickupTable()
	}
	if cfg.DashTable == nil {
		cfg.DashTable = DefaultDashTable()
	}
	if cfg.Currency == "" {
		cfg.Currency = shipper.DefaultCurrency
	}
	if cfg.TrackingPrefix == "" {
		cfg.TrackingPrefix = defaultTrackingPrefix
	}
	if cfg.LabelBaseURL == "" {
		cfg.LabelBaseURL = defaultLabelBaseURL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/printship/pkg/shipper/southwest")
	}

	return &Client{
		config: cfg,
		services: []service{
			{code: ServicePickup, name: "Southwest Cargo Pickup", days: 3, table: cfg.PickupTable},
			{code: ServiceDash, name: "Southwest Cargo Dash", days: 1, guaranteed: true, table: cfg.DashTable},
		},
		airports: airports,
		logger:   logger,
		tracer:   tracer,
		markup:   cfg.MarkupPercentage,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return CarrierName
}

// Validate reports an invalid rate table or a missing airport directory.
func (c *Client) Validate() error {
	if c.airports == nil {
		return shipper.NewConfigurationError(CarrierName, "airport cache not configured", nil)
	}
	for _, s := range c.services {
		if err := tier.Validate(s.table); err != nil {
			return shipper.NewConfigurationError(CarrierName, fmt.Sprintf("%s rate table", s.code), err)
		}
	}
	return nil
}

// ApplyConfig reads the markup override from the module config. Without the
// key the configured markup is kept.
func (c *Client) ApplyConfig(cfg shipper.ModuleConfig) error {
	markup, ok, err := cfg.Float(ConfigKeyMarkup)
	if err != nil {
		return shipper.NewConfigurationError(CarrierName, "module config", err)
	}
	if !ok {
		return nil
	}
	if markup < 0 {
		return shipper.NewConfigurationError(CarrierName, "module config",
			fmt.Errorf("%s: must not be negative", ConfigKeyMarkup))
	}

	c.mu.Lock()
	c.markup = markup
	c.mu.Unlock()
	return nil
}

// MarkupPercentage returns the markup currently applied to quotes.
func (c *Client) MarkupPercentage() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markup
}

// GetRates quotes both services. Until a pickup location is chosen on the
// first package, both rates carry the zero "unavailable" amount.
func (c *Client) GetRates(ctx context.Context, from, to shipper.Address, packages []shipper.Package) ([]shipper.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "southwest.GetRates")
	defer span.End()

	if len(packages) == 0 || packages[0].Meta(shipper.MetadataPickupLocation) == "" {
		span.SetAttributes(attribute.Bool("pickup_location", false))
		return c.rates(func(service) float64 { return 0 }), nil
	}

	var total float64
	for _, p := range packages {
		total += p.Weight
	}
	billable := weight.EnsureMinimum(weight.Round(total, 2), weight.DefaultMinimumWeight)
	markup := 1 + c.MarkupPercentage()/100

	span.SetAttributes(
		attribute.Bool("pickup_location", true),
		attribute.Float64("billable_weight", billable),
	)
	c.logger.Ctx(ctx).Debug("Pricing Southwest Cargo services",
		zap.String("pickup_location", packages[0].Meta(shipper.MetadataPickupLocation)),
		zap.Float64("billable_weight", billable),
	)

	return c.rates(func(s service) float64 {
		return roundCents(tier.Evaluate(s.table, billable) * markup)
	}), nil
}

func (c *Client) rates(amount func(service) float64) []shipper.Rate {
	rates := make([]shipper.Rate, len(c.services))
	for i, s := range c.services {
		rates[i] = shipper.Rate{
			Carrier:       CarrierName,
			ServiceCode:   s.code,
			ServiceName:   s.name,
			Amount:        amount(s),
			Currency:      c.config.Currency,
			EstimatedDays: s.days,
			Guaranteed:    s.guaranteed,
		}
	}
	return rates
}

// CreateLabel allocates a tracking number and label reference. No carrier
// call is made.
func (c *Client) CreateLabel(ctx context.Context, from, to shipper.Address, packages []shipper.Package, serviceCode string) (*shipper.Label, error) {
	if !c.hasService(serviceCode) {
		return nil, fmt.Errorf("%w: %q", shipper.ErrUnknownService, serviceCode)
	}

	now := c.config.Now()
	trackingNumber := c.trackingNumber(now)

	c.logger.Ctx(ctx).Info("Created Southwest Cargo label",
		zap.String("service_code", serviceCode),
		zap.String("tracking_number", trackingNumber),
	)

	return &shipper.Label{
		TrackingNumber: trackingNumber,
		LabelURL:       fmt.Sprintf("%s/%s.pdf", strings.TrimRight(c.config.LabelBaseURL, "/"), trackingNumber),
		Format:         shipper.LabelPDF,
		Carrier:        CarrierName,
		CreatedAt:      now,
	}, nil
}

// Track returns an in-transit status; Southwest Cargo exposes no tracking API.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	return &shipper.TrackingInfo{
		TrackingNumber: trackingNumber,
		Carrier:        CarrierName,
		Status:         shipper.StatusInTransit,
		Events: []shipper.TrackingEvent{
			{
				Timestamp:   c.config.Now(),
				Description: "Shipment in transit",
				Status:      shipper.StatusInTransit,
			},
		},
	}, nil
}

// ValidateAddress reports whether an active airport serves the address's state.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (bool, error) {
	if c.airports == nil {
		return false, errors.New("southwest: airport cache not configured")
	}
	return c.airports.IsStateAvailable(ctx, addr.State), nil
}

// CancelShipment always succeeds; labels are references only.
func (c *Client) CancelShipment(ctx context.Context, trackingNumber string) (bool, error) {
	c.logger.Ctx(ctx).Info("Cancelled Southwest Cargo shipment",
		zap.String("tracking_number", trackingNumber),
	)
	return true, nil
}

func (c *Client) hasService(code string) bool {
	for _, s := range c.services {
		if s.code == code {
			return true
		}
	}
	return false
}

func (c *Client) trackingNumber(now time.Time) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

	var b strings.Builder
	b.WriteString(c.config.TrackingPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	for range trackingSuffixLen {
		b.WriteByte(digits[rand.IntN(len(digits))])
	}
	return strings.ToUpper(b.String())
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	_ shipper.Shipper         = (*Client)(nil)
	_ shipper.ConfigValidator = (*Client)(nil)
	_ shipper.Configurable    = (*Client)(nil)
)
