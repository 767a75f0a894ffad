// Package memory provides in-process stores used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tournevent/printship/pkg/shipper"
)

// AirportStore is an in-memory airport directory.
type AirportStore struct {
	mu       sync.RWMutex
	airports map[string]shipper.Airport
}

// NewAirportStore creates an AirportStore seeded with airports.
func NewAirportStore(airports ...shipper.Airport) *AirportStore {
	s := &AirportStore{airports: make(map[string]shipper.Airport, len(airports))}
	for _, a := range airports {
		s.airports[a.ID] = a
	}
	return s
}

// Upsert adds or replaces an airport by ID.
func (s *AirportStore) Upsert(a shipper.Airport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airports[a.ID] = a
}

// FindActiveAirports returns the active airports of carrier ordered by
// state, then code.
func (s *AirportStore) FindActiveAirports(ctx context.Context, carrier string) ([]shipper.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shipper.Airport
	for _, a := range s.airports {
		if a.IsActive && strings.EqualFold(a.Carrier, carrier) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// RateStore is an in-memory shipper.RateStore.
type RateStore struct {
	mu    sync.RWMutex
	rates map[string][]shipper.Rate
}

// NewRateStore creates an empty RateStore.
func NewRateStore() *RateStore {
	return &RateStore{rates: make(map[string][]shipper.Rate)}
}

// SaveRates replaces the rates stored for orderID.
func (s *RateStore) SaveRates(ctx context.Context, orderID string, rates []shipper.Rate) error {
	cp := make([]shipper.Rate, len(rates))
	copy(cp, rates)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[orderID] = cp
	return nil
}

// LoadRates returns a copy of the rates stored for orderID, or nil.
func (s *RateStore) LoadRates(ctx context.Context, orderID string) ([]shipper.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.rates[orderID]
	if !ok {
		return nil, nil
	}
	cp := make([]shipper.Rate, len(stored))
	copy(cp, stored)
	return cp, nil
}

var _ shipper.RateStore = (*RateStore)(nil)
