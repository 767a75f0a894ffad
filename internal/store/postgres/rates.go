package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/tournevent/printship/pkg/shipper"
)

const (
	saveRatesSQL = `
INSERT INTO saved_shipping_rates (order_id, rates, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (order_id) DO UPDATE SET rates = EXCLUDED.rates, updated_at = now()`

	loadRatesSQL = `SELECT rates FROM saved_shipping_rates WHERE order_id = $1`
)

// RateStore keeps the rate list quoted for each order as JSONB.
type RateStore struct {
	db DB
}

// NewRateStore creates a RateStore.
func NewRateStore(db DB) *RateStore {
	return &RateStore{db: db}
}

// SaveRates replaces the rates stored for orderID.
func (s *RateStore) SaveRates(ctx context.Context, orderID string, rates []shipper.Rate) error {
	if rates == nil {
		rates = []shipper.Rate{}
	}
	payload, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("encoding rates: %w", err)
	}

	if _, err := s.db.Exec(ctx, saveRatesSQL, orderID, payload); err != nil {
		return fmt.Errorf("saving rates for order %s: %w", orderID, err)
	}
	return nil
}

// LoadRates returns the rates stored for orderID, or nil if none were saved.
func (s *RateStore) LoadRates(ctx context.Context, orderID string) ([]shipper.Rate, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, loadRatesSQL, orderID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading rates for order %s: %w", orderID, err)
	}

	var rates []shipper.Rate
	if err := json.Unmarshal(payload, &rates); err != nil {
		return nil, fmt.Errorf("decoding rates for order %s: %w", orderID, err)
	}
	return rates, nil
}

var _ shipper.RateStore = (*RateStore)(nil)
