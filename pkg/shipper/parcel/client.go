// Package parcel provides door-to-door parcel carriers (FedEx, UPS) through a
// rate-shopping gateway. One Client serves one carrier; several clients may
// share the same gateway API client.
package parcel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/printship/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Carrier ids served by the gateway.
const (
	FedEx = "fedex"
	UPS   = "ups"
)

// Config holds parcel carrier configuration.
type Config struct {
	Carrier     string // registry id and gateway carrier code, e.g. "fedex"
	APIKey      string
	BaseURL     string
	LabelFormat shipper.LabelFormat
	UseMock     bool // When true, uses mock API client
}

// Client is a parcel carrier client.
// It implements the shipper.Shipper interface and delegates
// API calls to the underlying APIClient (mock or HTTP). Both are kept so the
// module's test mode can be switched at runtime.
type Client struct {
	config  Config
	live    APIClient
	mock    APIClient
	useMock atomic.Bool
	logger  *otelzap.Logger
	tracer  trace.Tracer
}

// New creates a new parcel carrier client.
// If cfg.UseMock is true, it starts on the mock API client.
// Otherwise, it uses the HTTP gateway client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.UseMock {
		return NewWithAPIClient(cfg, NewMockAPIClient(), logger, tracer)
	}
	return NewWithAPIClient(cfg, newGatewayClient(cfg), logger, tracer)
}

// NewWithAPIClient creates a new client with a custom API client serving the
// mode selected by cfg.UseMock.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.LabelFormat == "" {
		cfg.LabelFormat = shipper.LabelPDF
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/printship/pkg/shipper/parcel")
	}

	c := &Client{
		config: cfg,
		logger: logger,
		tracer: tracer,
	}
	if cfg.UseMock {
		c.mock = apiClient
		c.live = newGatewayClient(cfg)
	} else {
		c.live = apiClient
		c.mock = NewMockAPIClient()
	}
	c.useMock.Store(cfg.UseMock)
	return c
}

func newGatewayClient(cfg Config) APIClient {
	return NewHTTPAPIClient(HTTPAPIClientConfig{
		Name:    cfg.Carrier,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: 30 * time.Second,
	})
}

// UsingMock reports whether the mock API client is active.
func (c *Client) UsingMock() bool {
	return c.useMock.Load()
}

// ApplyConfig switches between the mock and gateway API clients following
// the module's test mode. Leaving test mode requires gateway credentials.
func (c *Client) ApplyConfig(cfg shipper.ModuleConfig) error {
	if !cfg.TestMode {
		if err := c.validateGateway(); err != nil {
			return err
		}
	}
	if c.useMock.Swap(cfg.TestMode) != cfg.TestMode {
		c.logger.Info("Parcel API client switched",
			zap.String("carrier", c.config.Carrier),
			zap.Bool("mock", cfg.TestMode),
		)
	}
	return nil
}

func (c *Client) api() APIClient {
	if c.useMock.Load() {
		return c.mock
	}
	return c.live
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.config.Carrier
}

// Validate reports missing gateway credentials.
func (c *Client) Validate() error {
	if c.config.Carrier == "" {
		return shipper.NewConfigurationError("parcel", "carrier code is required", nil)
	}
	if c.useMock.Load() {
		return nil
	}
	return c.validateGateway()
}

func (c *Client) validateGateway() error {
	if c.config.APIKey == "" {
		return shipper.NewConfigurationError(c.config.Carrier, "gateway API key is required", nil)
	}
	if c.config.BaseURL == "" {
		return shipper.NewConfigurationError(c.config.Carrier, "gateway base URL is required", nil)
	}
	return nil
}

// GetRates returns the carrier's service quotes.
func (c *Client) GetRates(ctx context.Context, from, to shipper.Address, packages []shipper.Package) ([]shipper.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "parcel.GetRates", trace.WithAttributes(
		attribute.String("carrier", c.config.Carrier),
		attribute.Int("package_count", len(packages)),
	))
	defer span.End()

	if len(packages) == 0 {
		return nil, nil
	}

	c.logger.Ctx(ctx).Debug("Getting parcel quotes",
		zap.String("carrier", c.config.Carrier),
		zap.String("origin_postal_code", from.PostalCode),
		zap.String("destination_postal_code", to.PostalCode),
		zap.Int("package_count", len(packages)),
	)

	apiResp, err := c.api().GetRates(ctx, &RatesRequest{
		Carrier:     c.config.Carrier,
		Origin:      addressToLocation(from),
		Destination: addressToLocation(to),
		Packages:    packagesToAPI(packages),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, c.toShipperError(err)
	}

	return c.ratesToShipper(apiResp), nil
}

// CreateLabel books the shipment and returns its label.
func (c *Client) CreateLabel(ctx context.Context, from, to shipper.Address, packages []shipper.Package, serviceCode string) (*shipper.Label, error) {
	c.logger.Ctx(ctx).Info("Creating parcel shipment",
		zap.String("carrier", c.config.Carrier),
		zap.String("service_code", serviceCode),
	)

	apiResp, err := c.api().CreateShipment(ctx, &ShipmentRequest{
		UniqueID:    uuid.New().String(),
		Carrier:     c.config.Carrier,
		ServiceCode: serviceCode,
		Origin:      addressToLocation(from),
		Destination: addressToLocation(to),
		Packages:    packagesToAPI(packages),
		LabelFormat: string(c.config.LabelFormat),
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Parcel gateway error", zap.String("carrier", c.config.Carrier), zap.Error(err))
		return nil, c.toShipperError(err)
	}

	label := &shipper.Label{
		TrackingNumber: apiResp.TrackingNumber,
		Format:         c.config.LabelFormat,
		Carrier:        c.config.Carrier,
		CreatedAt:      time.Now(),
	}
	if len(apiResp.Labels) > 0 {
		label.LabelURL = apiResp.Labels[0].URL
		label.Format = mapLabelFormat(apiResp.Labels[0].Format)
	}
	return label, nil
}

// Track returns the shipment's tracking history.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	apiResp, err := c.api().GetTracking(ctx, c.config.Carrier, trackingNumber)
	if err != nil {
		return nil, c.toShipperError(err)
	}

	events := make([]shipper.TrackingEvent, len(apiResp.Events))
	for i, e := range apiResp.Events {
		ts, _ := time.Parse(time.RFC3339, e.Timestamp)
		events[i] = shipper.TrackingEvent{
			Timestamp:   ts,
			Description: e.Description,
			Location:    e.Location,
			Status:      mapStatus(e.Status),
		}
	}

	return &shipper.TrackingInfo{
		TrackingNumber:  trackingNumber,
		Carrier:         c.config.Carrier,
		Status:          mapStatus(apiResp.Status),
		CurrentLocation: apiResp.CurrentLocation,
		Events:          events,
	}, nil
}

// ValidateAddress checks the address with the carrier.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (bool, error) {
	loc := addressToLocation(addr)
	apiResp, err := c.api().ValidateAddress(ctx, c.config.Carrier, &loc)
	if err != nil {
		return false, c.toShipperError(err)
	}
	if !apiResp.Valid {
		c.logger.Ctx(ctx).Debug("Address rejected",
			zap.String("carrier", c.config.Carrier),
			zap.Strings("messages", apiResp.Messages),
		)
	}
	return apiResp.Valid, nil
}

// CancelShipment voids the shipment.
func (c *Client) CancelShipment(ctx context.Context, trackingNumber string) (bool, error) {
	c.logger.Ctx(ctx).Info("Cancelling parcel shipment",
		zap.String("carrier", c.config.Carrier),
		zap.String("tracking_number", trackingNumber),
	)

	apiResp, err := c.api().CancelShipment(ctx, c.config.Carrier, trackingNumber)
	if err != nil {
		return false, c.toShipperError(err)
	}
	return apiResp.Cancelled, nil
}

// toShipperError maps gateway failures onto shipper sentinels so callers can
// match them with errors.Is.
func (c *Client) toShipperError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return shipper.NewShipperError(c.config.Carrier, "TRANSPORT", "gateway request failed").
			WithCause(fmt.Errorf("%w: %w", shipper.ErrServiceUnavailable, err)).
			WithRetryable(true)
	}

	se := shipper.NewShipperError(c.config.Carrier, apiErr.Code, apiErr.Message).WithStatusCode(apiErr.StatusCode)
	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		se.WithCause(shipper.ErrShipmentNotFound)
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		se.WithCause(shipper.ErrAuthenticationFailed)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		se.WithCause(shipper.ErrRateLimitExceeded).WithRetryable(true)
	case apiErr.Code == "UNKNOWN_SERVICE":
		se.WithCause(shipper.ErrUnknownService)
	case apiErr.Code == "CANCELLATION_NOT_ALLOWED":
		se.WithCause(shipper.ErrCancellationNotAllowed)
	case apiErr.Code == "INVALID_ADDRESS":
		se.WithCause(shipper.ErrInvalidAddress)
	case apiErr.StatusCode >= 500:
		se.WithCause(shipper.ErrServiceUnavailable).WithRetryable(true)
	}
	return se
}

// ============================================================================
// Conversion helpers
// ============================================================================

func addressToLocation(addr shipper.Address) Location {
	return Location{
		Name:       addr.Name,
		Company:    addr.Company,
		Address1:   addr.Street1,
		Address2:   addr.Street2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func packagesToAPI(pkgs []shipper.Package) []Package {
	result := make([]Package, len(pkgs))
	for i, p := range pkgs {
		result[i] = Package{
			Length: p.Length,
			Width:  p.Width,
			Height: p.Height,
			Weight: p.Weight,
		}
	}
	return result
}

func (c *Client) ratesToShipper(resp *RatesResponse) []shipper.Rate {
	rates := make([]shipper.Rate, 0, len(resp.Rates))
	for _, r := range resp.Rates {
		currency := r.Currency
		if currency == "" {
			currency = shipper.DefaultCurrency
		}
		rates = append(rates, shipper.Rate{
			Carrier:       c.config.Carrier,
			ServiceCode:   r.ServiceCode,
			ServiceName:   r.ServiceName,
			Amount:        r.TotalPrice,
			Currency:      currency,
			EstimatedDays: r.TransitDays,
			Guaranteed:    r.Guaranteed,
		})
	}
	return rates
}

func mapStatus(status string) shipper.ShipmentStatus {
	switch strings.ToLower(status) {
	case "pending", "processing":
		return shipper.StatusPending
	case "label_created", "booked":
		return shipper.StatusLabelCreated
	case "picked_up":
		return shipper.StatusPickedUp
	case "in_transit":
		return shipper.StatusInTransit
	case "ready_for_pickup":
		return shipper.StatusReadyForPickup
	case "out_for_delivery":
		return shipper.StatusOutForDelivery
	case "delivered":
		return shipper.StatusDelivered
	case "cancelled", "voided":
		return shipper.StatusCancelled
	case "exception", "error", "failed":
		return shipper.StatusException
	default:
		return shipper.StatusPending
	}
}

func mapLabelFormat(format string) shipper.LabelFormat {
	switch strings.ToLower(format) {
	case "png":
		return shipper.LabelPNG
	case "zpl":
		return shipper.LabelZPL
	default:
		return shipper.LabelPDF
	}
}

func displayName(carrier string) string {
	switch carrier {
	case FedEx:
		return "FedEx"
	case UPS:
		return "UPS"
	default:
		return strings.ToUpper(carrier)
	}
}

var (
	_ shipper.Shipper         = (*Client)(nil)
	_ shipper.ConfigValidator = (*Client)(nil)
	_ shipper.Configurable    = (*Client)(nil)
)
