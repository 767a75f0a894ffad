package southwest

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tournevent/printship/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	// DefaultAirportCacheTTL is how long a loaded airport snapshot is served.
	DefaultAirportCacheTTL = time.Hour

	// DefaultFailureRetry is how long an empty snapshot installed after a
	// failed load is served before the next attempt.
	DefaultFailureRetry = time.Minute

	// DefaultLoadTimeout bounds one directory load.
	DefaultLoadTimeout = 5 * time.Second

	airportCacheName = "airports"
)

// AirportRepository is the airport directory the cache loads from.
type AirportRepository interface {
	FindActiveAirports(ctx context.Context, carrier string) ([]shipper.Airport, error)
}

// AirportCacheConfig holds AirportCache configuration.
type AirportCacheConfig struct {
	TTL          time.Duration
	FailureRetry time.Duration
	LoadTimeout  time.Duration
	Carrier      string
	Now          func() time.Time // defaults to time.Now
	Metrics      shipper.MetricsRecorder
}

type airportSnapshot struct {
	states    map[string]struct{}
	count     int
	expiresAt time.Time
}

// AirportCache answers "is there an active airport in this state" from a
// periodically refreshed snapshot of the airport directory.
type AirportCache struct {
	repo    AirportRepository
	cfg     AirportCacheConfig
	logger  *otelzap.Logger
	current atomic.Pointer[airportSnapshot]
}

// NewAirportCache creates an AirportCache. Nothing is loaded until the first
// lookup.
func NewAirportCache(cfg AirportCacheConfig, repo AirportRepository, logger *otelzap.Logger) *AirportCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAirportCacheTTL
	}
	if cfg.FailureRetry <= 0 {
		cfg.FailureRetry = DefaultFailureRetry
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.Carrier == "" {
		cfg.Carrier = CarrierName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AirportCache{repo: repo, cfg: cfg, logger: logger}
}

// IsStateAvailable reports whether an active airport exists in state.
// Matching ignores case and surrounding whitespace.
func (c *AirportCache) IsStateAvailable(ctx context.Context, state string) bool {
	snap := c.snapshot(ctx)
	_, ok := snap.states[normalizeState(state)]
	return ok
}

// AirportCount returns the number of active airports in the snapshot.
func (c *AirportCache) AirportCount(ctx context.Context) int {
	return c.snapshot(ctx).count
}

// ClearCache drops the snapshot; the next lookup reloads it.
func (c *AirportCache) ClearCache() {
	c.current.Store(nil)
}

func (c *AirportCache) snapshot(ctx context.Context) *airportSnapshot {
	now := c.cfg.Now()
	if snap := c.current.Load(); snap != nil && now.Before(snap.expiresAt) {
		c.recordLookup(true)
		return snap
	}
	c.recordLookup(false)

	// Concurrent misses may each load; the last complete snapshot wins.
	snap := c.load(ctx, now)
	c.current.Store(snap)
	return snap
}

// load refreshes detached from the caller's cancellation: the snapshot is
// shared, so one disconnected request must not degrade it for everyone.
func (c *AirportCache) load(ctx context.Context, now time.Time) *airportSnapshot {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LoadTimeout)
	defer cancel()

	airports, err := c.repo.FindActiveAirports(loadCtx, c.cfg.Carrier)
	if err != nil {
		c.logger.Ctx(ctx).Warn("Failed to load airports, serving empty availability",
			zap.String("carrier", c.cfg.Carrier),
			zap.Duration("retry_in", c.cfg.FailureRetry),
			zap.Error(err),
		)
		return &airportSnapshot{
			states:    map[string]struct{}{},
			expiresAt: now.Add(c.cfg.FailureRetry),
		}
	}

	snap := &airportSnapshot{
		states:    make(map[string]struct{}, len(airports)),
		expiresAt: now.Add(c.cfg.TTL),
	}
	for _, a := range airports {
		if !a.IsActive {
			continue
		}
		snap.count++
		if s := normalizeState(a.State); s != "" {
			snap.states[s] = struct{}{}
		}
	}

	c.logger.Ctx(ctx).Debug("Loaded airports",
		zap.String("carrier", c.cfg.Carrier),
		zap.Int("airports", snap.count),
		zap.Int("states", len(snap.states)),
	)
	return snap
}

func (c *AirportCache) recordLookup(hit bool) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordCacheLookup(airportCacheName, hit)
	}
}

func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
