// Package weight derives shipping weights from printed product dimensions and materials.
//
// Weights are in pounds and dimensions in inches. Functions never fail:
// negative inputs are treated as zero.
package weight

import (
	"math"
)

const (
	// DefaultDimDivisor is the dimensional weight divisor used by domestic
	// parcel carriers for inches and pounds.
	DefaultDimDivisor = 139.0

	// DefaultMinimumWeight is the smallest weight carriers bill for.
	DefaultMinimumWeight = 1.0

	// overheadStep and overheadPerStep model box and dunnage mass:
	// half a pound for every started 50 pounds of product.
	overheadStep    = 50.0
	overheadPerStep = 0.5
)

// Weight returns the weight of quantity sheets of width × height inches of a
// material weighing materialPerSqIn pounds per square inch.
func Weight(materialPerSqIn, width, height float64, quantity int) float64 {
	return clamp(materialPerSqIn) * clamp(width) * clamp(height) * clamp(float64(quantity))
}

// DimensionalWeight returns the volumetric weight L×W×H/divisor. A divisor
// of zero or less uses DefaultDimDivisor.
func DimensionalWeight(length, width, height, divisor float64) float64 {
	if divisor <= 0 {
		divisor = DefaultDimDivisor
	}
	return clamp(length) * clamp(width) * clamp(height) / divisor
}

// BillableWeight returns the weight a carrier charges for. When
// useDimensional is set the larger of actual and dimensional weight wins.
func BillableWeight(actual, dimensional float64, useDimensional bool) float64 {
	actual = clamp(actual)
	if useDimensional {
		return math.Max(actual, clamp(dimensional))
	}
	return actual
}

// EnsureMinimum raises weight to minimum.
func EnsureMinimum(weight, minimum float64) float64 {
	return math.Max(clamp(weight), minimum)
}

// Round rounds weight half-up to the given number of decimals.
func Round(weight float64, decimals int) float64 {
	weight = clamp(weight)
	if decimals < 0 {
		decimals = 0
	}
	p := math.Pow(10, float64(decimals))
	// The epsilon absorbs binary representation error, e.g. 1.005*100 = 100.4999...
	return math.Floor(weight*p+0.5+1e-9) / p
}

// PackagingOverhead returns the packaging mass added to productWeight.
func PackagingOverhead(productWeight float64) float64 {
	productWeight = clamp(productWeight)
	if productWeight == 0 {
		return 0
	}
	return math.Ceil(productWeight/overheadStep) * overheadPerStep
}

// WithPackaging returns productWeight plus its packaging overhead.
func WithPackaging(productWeight float64) float64 {
	return clamp(productWeight) + PackagingOverhead(productWeight)
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
