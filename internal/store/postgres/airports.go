package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tournevent/printship/pkg/shipper"
)

const findActiveAirportsSQL = `
SELECT id, code, name, city, state, carrier, is_active
FROM carrier_airports
WHERE carrier = $1 AND is_active
ORDER BY state, code`

type airportRow struct {
	ID       string `db:"id"`
	Code     string `db:"code"`
	Name     string `db:"name"`
	City     string `db:"city"`
	State    string `db:"state"`
	Carrier  string `db:"carrier"`
	IsActive bool   `db:"is_active"`
}

// AirportStore reads the carrier airport directory.
type AirportStore struct {
	db DB
}

// NewAirportStore creates an AirportStore.
func NewAirportStore(db DB) *AirportStore {
	return &AirportStore{db: db}
}

// FindActiveAirports returns the active airports of carrier.
func (s *AirportStore) FindActiveAirports(ctx context.Context, carrier string) ([]shipper.Airport, error) {
	rows, err := s.db.Query(ctx, findActiveAirportsSQL, carrier)
	if err != nil {
		return nil, fmt.Errorf("querying airports: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[airportRow])
	if err != nil {
		return nil, fmt.Errorf("scanning airports: %w", err)
	}

	airports := make([]shipper.Airport, len(found))
	for i, a := range found {
		airports[i] = shipper.Airport{
			ID:       a.ID,
			Code:     a.Code,
			Name:     a.Name,
			City:     a.City,
			State:    a.State,
			Carrier:  a.Carrier,
			IsActive: a.IsActive,
		}
	}
	return airports, nil
}
