package weight

import (
	"math"

	"github.com/tournevent/printship/pkg/shipper"
)

// MinBoxWeight is the smallest per-box limit SplitPackages honors, in pounds.
const MinBoxWeight = 0.01

// SplitPackages splits totalWeight into boxes no heavier than maxBoxWeight,
// spreading the weight evenly. Every box carries a copy of metadata. A
// maxBoxWeight of zero or less yields a single box; positive limits are
// raised to MinBoxWeight so no box rounds down to nothing.
func SplitPackages(totalWeight, maxBoxWeight float64, metadata map[string]string) []shipper.Package {
	totalWeight = clamp(totalWeight)
	if maxBoxWeight > 0 && maxBoxWeight < MinBoxWeight {
		maxBoxWeight = MinBoxWeight
	}

	boxes := 1
	if maxBoxWeight > 0 && totalWeight > maxBoxWeight {
		boxes = int(math.Ceil(totalWeight / maxBoxWeight))
		// At most one box per cent of weight.
		if cents := int(math.Round(totalWeight * 100)); cents > 0 && boxes > cents {
			boxes = cents
		}
	}

	per := Round(totalWeight/float64(boxes), 2)
	pkgs := make([]shipper.Package, boxes)
	for i := range pkgs {
		pkgs[i] = shipper.Package{Weight: per, Metadata: copyMeta(metadata)}
	}
	// Put rounding drift on the last box so the boxes still sum to the total.
	pkgs[boxes-1].Weight = Round(totalWeight-per*float64(boxes-1), 2)
	return pkgs
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
