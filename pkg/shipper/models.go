package shipper

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ShipmentStatus represents the normalized status of a shipment.
type ShipmentStatus string

const (
	StatusPending        ShipmentStatus = "pending"
	StatusLabelCreated   ShipmentStatus = "label_created"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusReadyForPickup ShipmentStatus = "ready_for_pickup"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusCancelled      ShipmentStatus = "cancelled"
	StatusException      ShipmentStatus = "exception"
)

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "pdf"
	LabelPNG LabelFormat = "png"
	LabelZPL LabelFormat = "zpl"
)

// DefaultCurrency is used when a carrier does not report one.
const DefaultCurrency = "USD"

// MetadataPickupLocation is the package metadata key holding the customer's
// chosen pickup location (an airport id for air-cargo carriers).
const MetadataPickupLocation = "pickup_location_id"

// Address represents a shipping address. Only State is consulted by the rate
// engine; full postal validation is left to the carriers.
type Address struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Street1    string `json:"street1,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	Phone      string `json:"phone,omitempty"`
}

// Package is one box of an order. Weight is in pounds, dimensions in inches.
type Package struct {
	Weight   float64           `json:"weight"`
	Length   float64           `json:"length,omitempty"`
	Width    float64           `json:"width,omitempty"`
	Height   float64           `json:"height,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key, or "" if unset.
func (p Package) Meta(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}

// Rate is a normalized shipping option quoted by a carrier.
//
// An Amount of zero means the rate cannot be computed yet (for example a
// pickup location has not been chosen). It must be shown as unavailable and
// never treated as free shipping.
type Rate struct {
	Carrier       string  `json:"carrier"`
	ServiceCode   string  `json:"serviceCode"`
	ServiceName   string  `json:"serviceName"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	EstimatedDays int     `json:"estimatedDays"`
	Guaranteed    bool    `json:"guaranteed"`
}

// Available reports whether the rate carries a real quote.
func (r Rate) Available() bool {
	return r.Amount > 0
}

// Label represents a created shipping label.
type Label struct {
	TrackingNumber string      `json:"trackingNumber"`
	LabelURL       string      `json:"labelUrl"`
	Format         LabelFormat `json:"format"`
	Carrier        string      `json:"carrier"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// TrackingEvent represents a tracking event.
type TrackingEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
	Status      ShipmentStatus `json:"status"`
}

// TrackingInfo is the tracking state of one shipment.
type TrackingInfo struct {
	TrackingNumber  string          `json:"trackingNumber"`
	Carrier         string          `json:"carrier"`
	Status          ShipmentStatus  `json:"status"`
	CurrentLocation string          `json:"currentLocation,omitempty"`
	Events          []TrackingEvent `json:"events"`
}

// Airport is a pickup location served by an air-cargo carrier.
type Airport struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	City     string `json:"city"`
	State    string `json:"state"`
	Carrier  string `json:"carrier"`
	IsActive bool   `json:"isActive"`
}

// ModuleConfig is the registry configuration of one carrier module.
type ModuleConfig struct {
	Enabled  bool           `json:"enabled"`
	Priority int            `json:"priority"`
	TestMode bool           `json:"testMode"`
	Config   map[string]any `json:"config,omitempty"`
}

// Float reads a numeric carrier setting. ok is false when the key is absent;
// a present value that is not a finite number is an error.
func (c ModuleConfig) Float(key string) (v float64, ok bool, err error) {
	raw, ok := c.Config[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case string:
		if v, err = strconv.ParseFloat(n, 64); err != nil {
			return 0, true, fmt.Errorf("%s: %q is not a number", key, n)
		}
	default:
		return 0, true, fmt.Errorf("%s: unsupported type %T", key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("%s: must be finite", key)
	}
	return v, true, nil
}

// ConfigPatch is a partial update to a ModuleConfig. Nil fields are left
// untouched; Config keys are merged into the existing map.
type ConfigPatch struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Priority *int           `json:"priority,omitempty"`
	TestMode *bool          `json:"testMode,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// ModuleStatus is a read-only diagnostic view of a registered module.
type ModuleStatus struct {
	ID          string       `json:"id"`
	Config      ModuleConfig `json:"config"`
	ConfigError string       `json:"configError,omitempty"`
}

// ============================================================================
// Cloning helpers
// ============================================================================

func (c ModuleConfig) clone() ModuleConfig {
	out := c
	if c.Config != nil {
		out.Config = make(map[string]any, len(c.Config))
		for k, v := range c.Config {
			out.Config[k] = v
		}
	}
	return out
}

func cloneRates(rates []Rate) []Rate {
	if rates == nil {
		return nil
	}
	out := make([]Rate, len(rates))
	copy(out, rates)
	return out
}
