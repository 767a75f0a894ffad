package tier_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/printship/pkg/shipper/tier"
)

func pickupTable() tier.Table {
	return tier.Table{
		{MaxWeight: 50, BaseRate: 80},
		{MaxWeight: tier.Unbounded, BaseRate: 102, AdditionalPerPound: 0.42, Basis: tier.BasisZero},
	}
}

func TestEvaluate_FlatBand(t *testing.T) {
	assert.Equal(t, 80.0, tier.Evaluate(pickupTable(), 50))
	assert.Equal(t, 80.0, tier.Evaluate(pickupTable(), 1))
	assert.Equal(t, 80.0, tier.Evaluate(pickupTable(), 0))
}

func TestEvaluate_OverageFullWeight(t *testing.T) {
	// 102 + 51*0.42
	assert.InDelta(t, 123.42, tier.Evaluate(pickupTable(), 51), 1e-9)
}

func TestEvaluate_OverageAbovePreviousTier(t *testing.T) {
	table := tier.Table{
		{MaxWeight: 50, BaseRate: 80},
		{MaxWeight: tier.Unbounded, BaseRate: 102, AdditionalPerPound: 0.42},
	}
	// 102 + (51-50)*0.42
	assert.InDelta(t, 102.42, tier.Evaluate(table, 51), 1e-9)
	assert.InDelta(t, 102+50*0.42, tier.Evaluate(table, 100), 1e-9)
}

func TestEvaluate_FirstTierOverageStartsAtZero(t *testing.T) {
	table := tier.Table{
		{MaxWeight: tier.Unbounded, BaseRate: 10, AdditionalPerPound: 2},
	}
	assert.InDelta(t, 30.0, tier.Evaluate(table, 10), 1e-9)
}

func TestEvaluate_HandlingFee(t *testing.T) {
	table := tier.Table{
		{MaxWeight: 10, BaseRate: 20, HandlingFee: 5},
		{MaxWeight: tier.Unbounded, BaseRate: 30, AdditionalPerPound: 1, HandlingFee: 5},
	}
	assert.Equal(t, 25.0, tier.Evaluate(table, 10))
	assert.InDelta(t, 30+2+5.0, tier.Evaluate(table, 12), 1e-9)
}

func TestEvaluate_FallsBackToLastTier(t *testing.T) {
	// Bounded table: weights above every tier use the last one.
	table := tier.Table{
		{MaxWeight: 10, BaseRate: 20},
		{MaxWeight: 20, BaseRate: 30, AdditionalPerPound: 1},
	}
	assert.InDelta(t, 30+15.0, tier.Evaluate(table, 25), 1e-9)
}

func TestEvaluate_EmptyAndNegative(t *testing.T) {
	assert.Equal(t, 0.0, tier.Evaluate(nil, 10))
	assert.Equal(t, 80.0, tier.Evaluate(pickupTable(), -5))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   tier.Table
		wantErr bool
	}{
		{"valid", pickupTable(), false},
		{"empty", tier.Table{}, true},
		{"not unbounded", tier.Table{{MaxWeight: 50, BaseRate: 80}}, true},
		{"unbounded not last", tier.Table{
			{MaxWeight: tier.Unbounded, BaseRate: 80},
			{MaxWeight: tier.Unbounded, BaseRate: 90},
		}, true},
		{"descending", tier.Table{
			{MaxWeight: 50, BaseRate: 80},
			{MaxWeight: 40, BaseRate: 90},
			{MaxWeight: tier.Unbounded, BaseRate: 100},
		}, true},
		{"negative price", tier.Table{{MaxWeight: tier.Unbounded, BaseRate: -1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tier.Validate(tt.table)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, tier.ErrInvalidTable))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
