// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tournevent/printship/pkg/shipper"
)

// Client is a mock shipper for testing. The On* hooks override the default
// behavior; Delay and Err apply to GetRates only.
type Client struct {
	name string

	Delay     time.Duration
	Err       error
	ConfigErr error

	OnGetRates        func(ctx context.Context, from, to shipper.Address, packages []shipper.Package) ([]shipper.Rate, error)
	OnCreateLabel     func(ctx context.Context, serviceCode string) (*shipper.Label, error)
	OnTrack           func(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error)
	OnValidateAddress func(ctx context.Context, addr shipper.Address) (bool, error)
	OnCancel          func(ctx context.Context, trackingNumber string) (bool, error)
	OnApplyConfig     func(cfg shipper.ModuleConfig) error

	rateCalls atomic.Int64
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// RateCalls returns how many times GetRates has been called.
func (c *Client) RateCalls() int {
	return int(c.rateCalls.Load())
}

// Validate returns ConfigErr.
func (c *Client) Validate() error {
	return c.ConfigErr
}

// ApplyConfig calls OnApplyConfig when set.
func (c *Client) ApplyConfig(cfg shipper.ModuleConfig) error {
	if c.OnApplyConfig != nil {
		return c.OnApplyConfig(cfg)
	}
	return nil
}

// GetRates returns two mock rates: a standard and an express service.
func (c *Client) GetRates(ctx context.Context, from, to shipper.Address, packages []shipper.Package) ([]shipper.Rate, error) {
	c.rateCalls.Add(1)

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if c.OnGetRates != nil {
		return c.OnGetRates(ctx, from, to, packages)
	}

	return []shipper.Rate{
		{
			Carrier:       c.name,
			ServiceCode:   "STANDARD",
			ServiceName:   fmt.Sprintf("%s Standard", c.name),
			Amount:        12.50,
			Currency:      shipper.DefaultCurrency,
			EstimatedDays: 5,
		},
		{
			Carrier:       c.name,
			ServiceCode:   "EXPRESS",
			ServiceName:   fmt.Sprintf("%s Express", c.name),
			Amount:        29.95,
			Currency:      shipper.DefaultCurrency,
			EstimatedDays: 2,
			Guaranteed:    true,
		},
	}, nil
}

// CreateLabel creates a mock label.
func (c *Client) CreateLabel(ctx context.Context, from, to shipper.Address, packages []shipper.Package, serviceCode string) (*shipper.Label, error) {
	if c.OnCreateLabel != nil {
		return c.OnCreateLabel(ctx, serviceCode)
	}

	trackingNumber := strings.ToUpper(fmt.Sprintf("%s%d", c.name, time.Now().UnixNano()%1000000000))
	return &shipper.Label{
		TrackingNumber: trackingNumber,
		LabelURL:       fmt.Sprintf("https://labels.%s.mock/%s.pdf", c.name, trackingNumber),
		Format:         shipper.LabelPDF,
		Carrier:        c.name,
		CreatedAt:      time.Now(),
	}, nil
}

// Track returns a mock in-transit status.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*shipper.TrackingInfo, error) {
	if c.OnTrack != nil {
		return c.OnTrack(ctx, trackingNumber)
	}

	return &shipper.TrackingInfo{
		TrackingNumber: trackingNumber,
		Carrier:        c.name,
		Status:         shipper.StatusInTransit,
		Events: []shipper.TrackingEvent{
			{Timestamp: time.Now(), Description: "In transit", Status: shipper.StatusInTransit},
		},
	}, nil
}

// ValidateAddress accepts every address.
func (c *Client) ValidateAddress(ctx context.Context, addr shipper.Address) (bool, error) {
	if c.OnValidateAddress != nil {
		return c.OnValidateAddress(ctx, addr)
	}
	return true, nil
}

// CancelShipment cancels a mock shipment.
func (c *Client) CancelShipment(ctx context.Context, trackingNumber string) (bool, error) {
	if c.OnCancel != nil {
		return c.OnCancel(ctx, trackingNumber)
	}
	return true, nil
}

var (
	_ shipper.Shipper      = (*Client)(nil)
	_ shipper.Configurable = (*Client)(nil)
)
