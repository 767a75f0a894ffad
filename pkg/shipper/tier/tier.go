// Package tier evaluates stepped carrier price tables against a weight.
package tier

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTable reports a rate table that breaks the tier invariants.
var ErrInvalidTable = errors.New("invalid rate table")

// Basis selects the weight the per-pound overage of a tier is measured from.
// With a {50, 80} tier followed by {Unbounded, 102, 0.42}, 51 lb prices at
// 102 + 1*0.42 = 102.42 under BasisPreviousTier and at 102 + 51*0.42 = 123.42
// under BasisZero. The Southwest Cargo tables use BasisZero.
type Basis int

const (
	// BasisPreviousTier measures overage above the previous tier's MaxWeight
	// (zero for the first tier).
	BasisPreviousTier Basis = iota

	// BasisZero multiplies the per-pound rate by the full weight.
	BasisZero
)

// Tier is one weight band of a service's price table. MaxWeight is an
// inclusive upper bound; the last tier of a table is unbounded (+Inf).
type Tier struct {
	MaxWeight          float64 `json:"maxWeight"`
	BaseRate           float64 `json:"baseRate"`
	AdditionalPerPound float64 `json:"additionalPerPound"`
	HandlingFee        float64 `json:"handlingFee"`
	Basis              Basis   `json:"basis"` // zero value is BasisPreviousTier
}

// Table is the ordered tier list of one service.
type Table []Tier

// Unbounded is the MaxWeight of the final tier.
var Unbounded = math.Inf(1)

// Evaluate returns the price of shipping weight pounds under table. The first
// tier whose MaxWeight is at least weight applies; if none does, the last
// tier is used. An empty table prices at zero.
func Evaluate(table Table, weight float64) float64 {
	if len(table) == 0 {
		return 0
	}
	if weight < 0 || math.IsNaN(weight) {
		weight = 0
	}

	for i, t := range table {
		if weight <= t.MaxWeight {
			return price(table, i, weight)
		}
	}
	return price(table, len(table)-1, weight)
}

func price(table Table, i int, weight float64) float64 {
	t := table[i]
	if t.AdditionalPerPound == 0 {
		return t.BaseRate + t.HandlingFee
	}

	var basis float64
	if t.Basis == BasisPreviousTier && i > 0 {
		basis = table[i-1].MaxWeight
	}
	return t.BaseRate + (weight-basis)*t.AdditionalPerPound + t.HandlingFee
}

// Validate checks that the table is non-empty, strictly ascending by
// MaxWeight, and ends with exactly one unbounded tier.
func Validate(table Table) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}

	prev := 0.0
	for i, t := range table {
		if t.BaseRate < 0 || t.AdditionalPerPound < 0 || t.HandlingFee < 0 {
			return fmt.Errorf("%w: tier %d has a negative price component", ErrInvalidTable, i)
		}
		if math.IsInf(t.MaxWeight, 1) && i != len(table)-1 {
			return fmt.Errorf("%w: tier %d is unbounded but not last", ErrInvalidTable, i)
		}
		if t.MaxWeight <= prev && i > 0 {
			return fmt.Errorf("%w: tier %d max weight %.2f does not exceed %.2f", ErrInvalidTable, i, t.MaxWeight, prev)
		}
		if t.MaxWeight <= 0 {
			return fmt.Errorf("%w: tier %d max weight must be positive", ErrInvalidTable, i)
		}
		prev = t.MaxWeight
	}

	if !math.IsInf(table[len(table)-1].MaxWeight, 1) {
		return fmt.Errorf("%w: last tier must be unbounded", ErrInvalidTable)
	}
	return nil
}
