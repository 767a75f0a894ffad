package shipper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultProviderTimeout bounds a single carrier's GetRates call.
	DefaultProviderTimeout = 10 * time.Second

	// DefaultRateCacheTTL is how long aggregated quotes are reused.
	DefaultRateCacheTTL = 5 * time.Minute

	rateCacheName = "rates"
)

// CalculatorConfig holds ShippingCalculator configuration.
type CalculatorConfig struct {
	ProviderTimeout time.Duration
	CacheTTL        time.Duration
	Metrics         MetricsRecorder // optional
}

// Calculator aggregates rates across the enabled carriers of a Registry and
// dispatches single-carrier actions. It is the entry point used by checkout.
type Calculator struct {
	registry *Registry
	store    RateStore
	cache    *gocache.Cache
	timeout  time.Duration
	metrics  MetricsRecorder
	logger   *otelzap.Logger
	tracer   trace.Tracer
}

// NewCalculator creates a Calculator. store may be nil, in which case order
// rate persistence returns ErrNoRateStore. A nil tracer uses the global
// OpenTelemetry provider.
func NewCalculator(cfg CalculatorConfig, registry *Registry, store RateStore, logger *otelzap.Logger, tracer trace.Tracer) *Calculator {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultRateCacheTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/printship/pkg/shipper")
	}

	return &Calculator{
		registry: registry,
		store:    store,
		cache:    gocache.New(ttl, 2*ttl),
		timeout:  timeout,
		metrics:  cfg.Metrics,
		logger:   logger,
		tracer:   tracer,
	}
}

// GetAllRates fetches rates from every enabled carrier in parallel.
// Carriers that fail, panic or exceed the provider timeout contribute no
// rates; the aggregate itself never fails. Rates are ordered by carrier
// priority, then by each carrier's own ordering.
func (c *Calculator) GetAllRates(ctx context.Context, from, to Address, packages []Package, useCache bool) []Rate {
	ctx, span := c.tracer.Start(ctx, "shipper.GetAllRates")
	defer span.End()

	var key string
	if useCache {
		key = rateCacheKey(from, to, packages)
		if cached, ok := c.cache.Get(key); ok {
			c.recordCache(true)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cloneRates(cached.([]Rate))
		}
		c.recordCache(false)
	}

	modules := c.registry.EnabledModules()
	span.SetAttributes(attribute.Int("carrier.count", len(modules)))
	if len(modules) == 0 {
		c.logger.Ctx(ctx).Warn("No enabled shipping carriers")
		return []Rate{}
	}

	perModule := make([][]Rate, len(modules))
	succeeded := make([]bool, len(modules))

	// Errors are never returned to the group: one broken carrier must not
	// cancel or fail the others.
	var g errgroup.Group
	for i, m := range modules {
		g.Go(func() error {
			perModule[i], succeeded[i] = c.quote(ctx, m, from, to, packages)
			return nil
		})
	}
	g.Wait()

	complete := ctx.Err() == nil
	rates := make([]Rate, 0, len(modules)*2)
	for i, rs := range perModule {
		complete = complete && succeeded[i]
		rates = append(rates, rs...)
	}

	// A partial aggregate is served but not cached, so a recovered carrier
	// shows up on the next request instead of after the TTL.
	if useCache && complete {
		c.cache.SetDefault(key, cloneRates(rates))
	}
	return rates
}

// GetCarrierRates fetches rates from a single carrier. Only lookup failures
// are returned as errors; a failing carrier yields an empty slice.
func (c *Calculator) GetCarrierRates(ctx context.Context, carrier string, from, to Address, packages []Package) ([]Rate, error) {
	m, err := c.registry.Module(carrier)
	if err != nil {
		return nil, err
	}
	if !m.Config.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrCarrierDisabled, carrier)
	}
	rates, _ := c.quote(ctx, m, from, to, packages)
	return rates, nil
}

// CreateLabel creates a label with the named carrier. Carrier errors are
// returned to the caller.
func (c *Calculator) CreateLabel(ctx context.Context, carrier string, from, to Address, packages []Package, serviceCode string) (*Label, error) {
	m, err := c.registry.Module(carrier)
	if err != nil {
		return nil, err
	}
	if !m.Config.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrCarrierDisabled, carrier)
	}
	if len(packages) == 0 {
		return nil, ErrNoPackages
	}

	start := time.Now()
	label, err := m.Provider.CreateLabel(ctx, from, to, packages, serviceCode)
	c.recordAction("create_label", carrier, start, err)
	if err != nil {
		c.logger.Ctx(ctx).Error("Label creation failed",
			zap.String("carrier", carrier),
			zap.String("service_code", serviceCode),
			zap.Error(err),
		)
		return nil, fmt.Errorf("creating %s label: %w", carrier, err)
	}
	return label, nil
}

// TrackShipment returns tracking information from the named carrier.
func (c *Calculator) TrackShipment(ctx context.Context, carrier, trackingNumber string) (*TrackingInfo, error) {
	m, err := c.registry.Module(carrier)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := m.Provider.Track(ctx, trackingNumber)
	c.recordAction("track", carrier, start, err)
	if err != nil {
		return nil, fmt.Errorf("tracking %s shipment %s: %w", carrier, trackingNumber, err)
	}
	return info, nil
}

// CancelShipment cancels a shipment with the named carrier.
func (c *Calculator) CancelShipment(ctx context.Context, carrier, trackingNumber string) (bool, error) {
	m, err := c.registry.Module(carrier)
	if err != nil {
		return false, err
	}

	start := time.Now()
	ok, err := m.Provider.CancelShipment(ctx, trackingNumber)
	c.recordAction("cancel", carrier, start, err)
	if err != nil {
		return false, fmt.Errorf("cancelling %s shipment %s: %w", carrier, trackingNumber, err)
	}
	return ok, nil
}

// ValidateAddress checks the address with one carrier. Without a carrier the
// address is assumed valid; carriers decide authoritatively at quote time.
func (c *Calculator) ValidateAddress(ctx context.Context, addr Address, carrier string) (bool, error) {
	if carrier == "" {
		return true, nil
	}
	m, err := c.registry.Module(carrier)
	if err != nil {
		return false, err
	}
	return m.Provider.ValidateAddress(ctx, addr)
}

// SaveRatesForOrder stores the rates offered for an order.
func (c *Calculator) SaveRatesForOrder(ctx context.Context, orderID string, rates []Rate) error {
	if c.store == nil {
		return ErrNoRateStore
	}
	if err := c.store.SaveRates(ctx, orderID, rates); err != nil {
		return fmt.Errorf("saving rates for order %s: %w", orderID, err)
	}
	return nil
}

// GetSavedRates returns the rates stored for an order.
func (c *Calculator) GetSavedRates(ctx context.Context, orderID string) ([]Rate, error) {
	if c.store == nil {
		return nil, ErrNoRateStore
	}
	rates, err := c.store.LoadRates(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading rates for order %s: %w", orderID, err)
	}
	return rates, nil
}

// ClearCache drops every cached aggregate quote.
func (c *Calculator) ClearCache() {
	c.cache.Flush()
}

// quote runs one carrier's GetRates under the provider timeout. The call runs
// in its own goroutine so a carrier that ignores its context is abandoned
// rather than waited on. The flag reports whether the carrier answered.
func (c *Calculator) quote(ctx context.Context, m Module, from, to Address, packages []Package) ([]Rate, bool) {
	ctx, span := c.tracer.Start(ctx, "shipper.GetRates", trace.WithAttributes(attribute.String("carrier", m.ID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		rates []Rate
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("carrier panicked: %v", p)}
			}
		}()
		rates, err := m.Provider.GetRates(ctx, from, to, packages)
		done <- result{rates: rates, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}

	if res.err != nil {
		errType := classifyError(res.err)
		span.RecordError(res.err)
		span.SetStatus(codes.Error, errType)
		c.logger.Ctx(ctx).Warn("Carrier rate lookup failed",
			zap.String("carrier", m.ID),
			zap.String("error_type", errType),
			zap.Duration("took", time.Since(start)),
			zap.Error(res.err),
		)
		if c.metrics != nil {
			c.metrics.RecordRequest("get_rates", m.ID, "error", time.Since(start).Seconds())
			c.metrics.RecordError(m.ID, errType)
		}
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.RecordRequest("get_rates", m.ID, "ok", time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Int("rate.count", len(res.rates)))
	return res.rates, true
}

func (c *Calculator) recordAction(operation, carrier string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.RecordError(carrier, classifyError(err))
	}
	c.metrics.RecordRequest(operation, carrier, status, time.Since(start).Seconds())
}

func (c *Calculator) recordCache(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(rateCacheName, hit)
	}
}

func classifyError(err error) string {
	var shipperErr *ShipperError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case IsConfigurationError(err):
		return "configuration"
	case errors.As(err, &shipperErr):
		return shipperErr.Code
	case IsRetryable(err):
		return "transient"
	default:
		return "unknown"
	}
}

// rateCacheKey hashes the quote inputs. Map keys are encoded in sorted order,
// so equal inputs always produce equal keys.
func rateCacheKey(from, to Address, packages []Package) string {
	payload, err := json.Marshal(struct {
		From     Address   `json:"from"`
		To       Address   `json:"to"`
		Packages []Package `json:"packages"`
	}{from, to, packages})
	if err != nil {
		return fmt.Sprintf("%v|%v|%v", from, to, packages)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
