package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/printship/internal/store/memory"
	"github.com/tournevent/printship/pkg/shipper"
)

func TestAirportStore_FindActiveAirports(t *testing.T) {
	store := memory.NewAirportStore(
		shipper.Airport{ID: "3", Code: "DAL", State: "TX", Carrier: "southwest", IsActive: true},
		shipper.Airport{ID: "1", Code: "TUS", State: "AZ", Carrier: "southwest", IsActive: true},
		shipper.Airport{ID: "2", Code: "PHX", State: "AZ", Carrier: "southwest", IsActive: true},
		shipper.Airport{ID: "4", Code: "RNO", State: "NV", Carrier: "southwest", IsActive: false},
		shipper.Airport{ID: "5", Code: "LAX", State: "CA", Carrier: "other", IsActive: true},
	)

	airports, err := store.FindActiveAirports(context.Background(), "southwest")
	require.NoError(t, err)

	codes := make([]string, len(airports))
	for i, a := range airports {
		codes[i] = a.Code
	}
	assert.Equal(t, []string{"PHX", "TUS", "DAL"}, codes)
}

func TestAirportStore_Upsert(t *testing.T) {
	store := memory.NewAirportStore()
	ctx := context.Background()

	store.Upsert(shipper.Airport{ID: "1", Code: "PHX", State: "AZ", Carrier: "southwest", IsActive: true})
	airports, err := store.FindActiveAirports(ctx, "southwest")
	require.NoError(t, err)
	assert.Len(t, airports, 1)

	store.Upsert(shipper.Airport{ID: "1", Code: "PHX", State: "AZ", Carrier: "southwest", IsActive: false})
	airports, err = store.FindActiveAirports(ctx, "southwest")
	require.NoError(t, err)
	assert.Empty(t, airports)
}

func TestRateStore_SaveAndLoad(t *testing.T) {
	store := memory.NewRateStore()
	ctx := context.Background()
	rates := []shipper.Rate{{Carrier: "ups", ServiceCode: "UPS_GROUND", Amount: 11.2}}

	require.NoError(t, store.SaveRates(ctx, "order-1", rates))

	// Mutating the caller's slice does not affect the stored copy.
	rates[0].Amount = 0

	loaded, err := store.LoadRates(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 11.2, loaded[0].Amount)

	missing, err := store.LoadRates(ctx, "order-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
