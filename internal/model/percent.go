package model

import "math"

// NormalizePercent clamps a percent value to the closed integer range [0,100].
// Non-finite input yields the fallback unchanged, so missing readings never
// propagate NaN into a display.
func NormalizePercent(value float64, fallback int) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	return int(math.Round(math.Min(100, math.Max(0, value))))
}

// NormalizePercentPtr is NormalizePercent over an optional value.
func NormalizePercentPtr(value *float64, fallback int) int {
	if value == nil {
		return fallback
	}
	return NormalizePercent(*value, fallback)
}

// AveragePercent returns the arithmetic mean of the finite values the getter
// produces. Members without a finite value contribute nothing; an empty or
// all-non-finite input yields 0. The result is intentionally unrounded so the
// caller rounds once at the end instead of compounding per-member rounding.
func AveragePercent[T any](items []T, get func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	var count int
	for _, item := range items {
		v := get(item)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Finite reports whether an optional value carries a finite number.
func Finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
