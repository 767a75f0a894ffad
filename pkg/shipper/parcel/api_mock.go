package parcel

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing and for
// running without gateway credentials. Quotes are deterministic functions
// of the total package weight.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates        func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
	OnCreateShipment  func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetTracking     func(ctx context.Context, carrier, trackingNumber string) (*TrackingResponse, error)
	OnValidateAddress func(ctx context.Context, carrier string, addr *Location) (*AddressValidationResponse, error)
	OnCancelShipment  func(ctx context.Context, carrier, trackingNumber string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

type mockService struct {
	suffix     string
	name       string
	base       float64
	perPound   float64
	days       int
	guaranteed bool
}

var mockServices = []mockService{
	{suffix: "GROUND", name: "Ground", base: 8.95, perPound: 0.85, days: 5},
	{suffix: "2_DAY", name: "2Day", base: 18.50, perPound: 1.65, days: 2, guaranteed: true},
}

func (m *MockAPIClient) simulate(ctx context.Context) error {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 503, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// GetRates returns a ground and a two-day quote.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	var weight float64
	for _, p := range req.Packages {
		weight += p.Weight
	}
	weight = math.Max(1, math.Ceil(weight))

	prefix := strings.ToUpper(req.Carrier)
	rates := make([]Rate, len(mockServices))
	for i, s := range mockServices {
		base := s.base + s.perPound*weight
		fuel := math.Round(base*0.12*100) / 100
		rates[i] = Rate{
			ServiceCode:   prefix + "_" + s.suffix,
			ServiceName:   fmt.Sprintf("%s %s", displayName(req.Carrier), s.name),
			BaseRate:      math.Round(base*100) / 100,
			FuelSurcharge: fuel,
			TotalPrice:    math.Round((base+fuel)*100) / 100,
			Currency:      "USD",
			TransitDays:   s.days,
			Guaranteed:    s.guaranteed,
		}
	}

	return &RatesResponse{
		RequestID: "req-" + uuid.New().String()[:8],
		Rates:     rates,
	}, nil
}

// CreateShipment books a mock shipment.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	if !mockServiceExists(req.Carrier, req.ServiceCode) {
		return nil, &APIError{StatusCode: 422, Code: "UNKNOWN_SERVICE", Message: "service " + req.ServiceCode + " not offered"}
	}

	id := uuid.New().String()
	trackingNumber := fmt.Sprintf("1Z%012d", time.Now().UnixNano()%1000000000000)
	format := req.LabelFormat
	if format == "" {
		format = "pdf"
	}

	return &ShipmentResponse{
		ID:             id,
		Status:         "booked",
		TrackingNumber: trackingNumber,
		Labels: []Label{
			{Format: format, URL: fmt.Sprintf("https://labels.mock/%s/%s.%s", req.Carrier, id, format)},
		},
	}, nil
}

// GetTracking returns a mock in-transit history.
func (m *MockAPIClient) GetTracking(ctx context.Context, carrier, trackingNumber string) (*TrackingResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, carrier, trackingNumber)
	}

	now := time.Now()
	return &TrackingResponse{
		TrackingNumber:  trackingNumber,
		Status:          "in_transit",
		CurrentLocation: "Memphis, TN",
		Events: []TrackingEvent{
			{Timestamp: now.Add(-26 * time.Hour).Format(time.RFC3339), Description: "Picked up", Location: "Phoenix, AZ", Status: "picked_up"},
			{Timestamp: now.Add(-2 * time.Hour).Format(time.RFC3339), Description: "Arrived at hub", Location: "Memphis, TN", Status: "in_transit"},
		},
	}, nil
}

// ValidateAddress accepts addresses with a city, state and postal code.
func (m *MockAPIClient) ValidateAddress(ctx context.Context, carrier string, addr *Location) (*AddressValidationResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnValidateAddress != nil {
		return m.OnValidateAddress(ctx, carrier, addr)
	}

	if addr.City == "" || addr.State == "" || addr.PostalCode == "" {
		return &AddressValidationResponse{Valid: false, Messages: []string{"incomplete address"}}, nil
	}
	return &AddressValidationResponse{Valid: true}, nil
}

// CancelShipment voids a mock shipment.
func (m *MockAPIClient) CancelShipment(ctx context.Context, carrier, trackingNumber string) (*CancelResponse, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, carrier, trackingNumber)
	}

	return &CancelResponse{
		TrackingNumber: trackingNumber,
		Cancelled:      true,
		Status:         "cancelled",
	}, nil
}

func mockServiceExists(carrier, code string) bool {
	prefix := strings.ToUpper(carrier) + "_"
	for _, s := range mockServices {
		if code == prefix+s.suffix {
			return true
		}
	}
	return false
}

var _ APIClient = (*MockAPIClient)(nil)
