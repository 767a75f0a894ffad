package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/printship/internal/store/postgres"
	"github.com/tournevent/printship/pkg/shipper"
)

// fakeDB keeps saved_shipping_rates payloads in memory.
type fakeDB struct {
	payloads map[string][]byte
	execErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{payloads: map[string][]byte{}}
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{payload: f.payloads[args[0].(string)]}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.payloads[args[0].(string)] = args[1].([]byte)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type fakeRow struct {
	payload []byte
}

func (r fakeRow) Scan(dest ...any) error {
	if r.payload == nil {
		return pgx.ErrNoRows
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

func testRates() []shipper.Rate {
	return []shipper.Rate{
		{Carrier: "southwest", ServiceCode: "pickup", ServiceName: "Southwest Cargo Pickup", Amount: 123.42, Currency: "USD", EstimatedDays: 3},
		{Carrier: "southwest", ServiceCode: "dash", ServiceName: "Southwest Cargo Dash", Amount: 186.62, Currency: "USD", EstimatedDays: 1, Guaranteed: true},
	}
}

func TestRateStore_SaveAndLoad(t *testing.T) {
	db := newFakeDB()
	store := postgres.NewRateStore(db)
	ctx := context.Background()

	require.NoError(t, store.SaveRates(ctx, "order-1", testRates()))

	var stored []map[string]any
	require.NoError(t, json.Unmarshal(db.payloads["order-1"], &stored))
	assert.Equal(t, "pickup", stored[0]["serviceCode"])

	loaded, err := store.LoadRates(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, testRates(), loaded)
}

func TestRateStore_LoadMissing(t *testing.T) {
	store := postgres.NewRateStore(newFakeDB())

	rates, err := store.LoadRates(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rates)
}

func TestRateStore_SaveNilStoresEmptyList(t *testing.T) {
	db := newFakeDB()
	store := postgres.NewRateStore(db)

	require.NoError(t, store.SaveRates(context.Background(), "order-2", nil))
	assert.Equal(t, "[]", string(db.payloads["order-2"]))
}

func TestRateStore_SaveError(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("connection reset")
	store := postgres.NewRateStore(db)

	err := store.SaveRates(context.Background(), "order-3", testRates())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order-3")
	assert.ErrorIs(t, err, db.execErr)
}

// TestStores_Integration runs against a real database when
// PRINTSHIP_TEST_DATABASE_URL is set.
func TestStores_Integration(t *testing.T) {
	url := os.Getenv("PRINTSHIP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PRINTSHIP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{URL: url, MaxConns: 2})
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, postgres.Migrate(ctx, pool))

	_, err = pool.Exec(ctx, `INSERT INTO carrier_airports (id, code, name, city, state, carrier, is_active)
		VALUES ('it-phx', 'PHX', 'Phoenix Sky Harbor', 'Phoenix', 'AZ', 'it-carrier', true),
		       ('it-old', 'OLD', 'Closed Field', 'Nowhere', 'NV', 'it-carrier', false)
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM carrier_airports WHERE carrier = 'it-carrier'`)
		_, _ = pool.Exec(ctx, `DELETE FROM saved_shipping_rates WHERE order_id = 'it-order'`)
	})

	airports, err := postgres.NewAirportStore(pool).FindActiveAirports(ctx, "it-carrier")
	require.NoError(t, err)
	require.Len(t, airports, 1)
	assert.Equal(t, "PHX", airports[0].Code)
	assert.True(t, airports[0].IsActive)

	rates := postgres.NewRateStore(pool)
	require.NoError(t, rates.SaveRates(ctx, "it-order", testRates()[:1]))
	require.NoError(t, rates.SaveRates(ctx, "it-order", testRates()))

	loaded, err := rates.LoadRates(ctx, "it-order")
	require.NoError(t, err)
	assert.Equal(t, testRates(), loaded)
}

func TestAirportStore_QueryError(t *testing.T) {
	store := postgres.NewAirportStore(newFakeDB())

	airports, err := store.FindActiveAirports(context.Background(), "southwest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying airports")
	assert.Nil(t, airports)
}
