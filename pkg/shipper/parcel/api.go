package parcel

import (
	"context"
	"fmt"
)

// APIClient defines the parcel gateway operations.
// This abstraction allows for mock implementations during testing
// and the HTTP implementation in production.
type APIClient interface {
	// GetRates quotes every service of one carrier.
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	// CreateShipment books a shipment and returns its label.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetTracking retrieves tracking events.
	GetTracking(ctx context.Context, carrier, trackingNumber string) (*TrackingResponse, error)

	// ValidateAddress checks a destination address.
	ValidateAddress(ctx context.Context, carrier string, addr *Location) (*AddressValidationResponse, error)

	// CancelShipment voids a booked shipment.
	CancelShipment(ctx context.Context, carrier, trackingNumber string) (*CancelResponse, error)
}

// ============================================================================
// API Request/Response Types (gateway REST v1, imperial units)
// ============================================================================

// RatesRequest represents a rate quote request.
// POST /v1/rates
type RatesRequest struct {
	Carrier     string    `json:"carrier"`
	Origin      Location  `json:"origin"`
	Destination Location  `json:"destination"`
	Packages    []Package `json:"packages"`
}

// Location represents origin or destination.
type Location struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address_1"`
	Address2   string `json:"address_2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2 code
	Phone      string `json:"phone,omitempty"`
}

// Package represents a single box.
type Package struct {
	Length float64 `json:"length,omitempty"` // in
	Width  float64 `json:"width,omitempty"`  // in
	Height float64 `json:"height,omitempty"` // in
	Weight float64 `json:"weight"`           // lb
}

// RatesResponse represents the rate quote response.
type RatesResponse struct {
	RequestID string `json:"request_id"`
	Rates     []Rate `json:"rates"`
}

// Rate represents a single service quote.
type Rate struct {
	ServiceCode   string  `json:"service_code"`
	ServiceName   string  `json:"service_name"`
	BaseRate      float64 `json:"base_rate"`
	FuelSurcharge float64 `json:"fuel_surcharge"`
	TotalPrice    float64 `json:"total_price"`
	Currency      string  `json:"currency"`
	TransitDays   int     `json:"transit_days"`
	Guaranteed    bool    `json:"guaranteed"`
}

// ShipmentRequest represents a shipment booking.
// POST /v1/shipments
type ShipmentRequest struct {
	UniqueID    string    `json:"unique_id"` // prevents duplicate bookings
	Carrier     string    `json:"carrier"`
	ServiceCode string    `json:"service_code"`
	Origin      Location  `json:"origin"`
	Destination Location  `json:"destination"`
	Packages    []Package `json:"packages"`
	LabelFormat string    `json:"label_format"` // "pdf", "png", "zpl"
}

// ShipmentResponse represents a booked shipment.
type ShipmentResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	TrackingNumber string  `json:"tracking_number"`
	Labels         []Label `json:"labels,omitempty"`
}

// Label represents a printable label artifact.
type Label struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

// TrackingResponse represents tracking information.
// GET /v1/tracking/{carrier}/{tracking_number}
type TrackingResponse struct {
	TrackingNumber  string          `json:"tracking_number"`
	Status          string          `json:"status"`
	CurrentLocation string          `json:"current_location,omitempty"`
	Events          []TrackingEvent `json:"events"`
}

// TrackingEvent represents a single tracking event.
type TrackingEvent struct {
	Timestamp   string `json:"timestamp"` // RFC 3339
	Description string `json:"description"`
	Location    string `json:"location"`
	Status      string `json:"status"`
}

// AddressValidationResponse represents an address check.
// POST /v1/addresses/validate
type AddressValidationResponse struct {
	Valid    bool     `json:"valid"`
	Messages []string `json:"messages,omitempty"`
}

// CancelResponse represents a void request result.
// DELETE /v1/shipments/{carrier}/{tracking_number}
type CancelResponse struct {
	TrackingNumber string `json:"tracking_number"`
	Cancelled      bool   `json:"cancelled"`
	Status         string `json:"status"`
}

// APIError represents an error from the gateway.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return e.Code + ": " + e.Message
}
