package model

import "math"

// WindRange is an upwind angular range in degrees. Endpoints are stored as
// given; Contains normalizes mod 360 and handles ranges that wrap past north
// (e.g. 300-60). Equal endpoints mean the full circle.
type WindRange [2]float64

// Start returns the range start in [0,360).
func (r WindRange) Start() float64 { return wrapDeg(r[0]) }

// End returns the range end in [0,360).
func (r WindRange) End() float64 { return wrapDeg(r[1]) }

// Contains reports whether the wind direction falls inside the range.
func (r WindRange) Contains(direction float64) bool {
	if math.IsNaN(direction) || math.IsInf(direction, 0) {
		return false
	}
	d := wrapDeg(direction)
	start, end := r.Start(), r.End()
	if start == end {
		return true
	}
	if start < end {
		return d >= start && d < end
	}
	return d >= start || d < end
}

// AnyContains reports whether any range matches the direction.
func AnyContains(ranges []WindRange, direction float64) bool {
	for _, r := range ranges {
		if r.Contains(direction) {
			return true
		}
	}
	return false
}

func wrapDeg(v float64) float64 {
	d := math.Mod(v, 360)
	if d < 0 {
		d += 360
	}
	return d
}
