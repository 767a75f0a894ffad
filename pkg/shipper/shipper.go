// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Shipper defines the interface that all shipping carriers must implement.
//
// GetRates is best-effort: errors it returns are logged by the Calculator and
// never reach aggregate callers, so an implementation may equally return an
// empty slice. The remaining methods are explicit single-carrier actions and
// their errors are propagated.
type Shipper interface {
	// Name returns the carrier identifier (e.g., "southwest", "fedex", "ups").
	Name() string

	// GetRates returns the shipping options this carrier offers for the packages.
	GetRates(ctx context.Context, from, to Address, packages []Package) ([]Rate, error)

	// CreateLabel allocates a tracking number and label artifact reference.
	CreateLabel(ctx context.Context, from, to Address, packages []Package, serviceCode string) (*Label, error)

	// Track returns the current tracking status of a shipment.
	Track(ctx context.Context, trackingNumber string) (*TrackingInfo, error)

	// ValidateAddress reports whether the carrier can serve the address.
	ValidateAddress(ctx context.Context, addr Address) (bool, error)

	// CancelShipment cancels an existing shipment.
	CancelShipment(ctx context.Context, trackingNumber string) (bool, error)
}

// ConfigValidator is implemented by carriers that can detect their own
// misconfiguration (missing credentials, invalid rate tables).
type ConfigValidator interface {
	Validate() error
}

// Configurable is implemented by carriers whose behavior follows their
// registry configuration. ApplyConfig is called on registration and on every
// configuration update; it must either apply cfg completely or return an error
// and leave the carrier unchanged.
type Configurable interface {
	ApplyConfig(cfg ModuleConfig) error
}

// RateStore persists the rate list offered for an order.
type RateStore interface {
	SaveRates(ctx context.Context, orderID string, rates []Rate) error
	LoadRates(ctx context.Context, orderID string) ([]Rate, error)
}

// MetricsRecorder receives calculator measurements.
type MetricsRecorder interface {
	RecordRequest(operation, carrier, status string, duration float64)
	RecordError(carrier, errorType string)
	RecordCacheLookup(cache string, hit bool)
}
