// Package reconcile computes the displayed target/actual positions from the
// last-fetched installation snapshot. Under manual authority the target side
// honors per-vent operator targets; under auto it mirrors what the controller
// is actually doing. The fallback chain guarantees partial data never renders
// as NaN.
package reconcile

import (
	"math"

	"github.com/farmcare/ventpanel/internal/model"
)

// Display is a reconciled (target, actual) pair in whole percent.
type Display struct {
	Target int
	Actual int
}

// Vent reconciles a single vent.
func Vent(v model.Vent, mode model.Mode) Display {
	actual := model.NormalizePercentPtr(v.Position, 0)
	desired := desiredValue(v, mode)
	return Display{
		Target: model.NormalizePercent(desired, actual),
		Actual: actual,
	}
}

// Group reconciles a group over its member vents. Dangling vent references
// simply match nothing and drop out of the average.
func Group(g model.Group, vents []model.Vent, mode model.Mode) Display {
	relevant := make([]model.Vent, 0, len(vents))
	for _, v := range vents {
		if g.Member(v.ID) {
			relevant = append(relevant, v)
		}
	}
	return Installation(relevant, mode)
}

// Installation reconciles the whole vent set. Members are averaged before the
// single rounding step so per-member rounding error cannot compound.
func Installation(vents []model.Vent, mode model.Mode) Display {
	actualAvg := model.AveragePercent(vents, func(v model.Vent) float64 {
		return positionValue(v)
	})
	targetAvg := actualAvg
	if mode == model.ModeManual {
		targetAvg = model.AveragePercent(vents, func(v model.Vent) float64 {
			return desiredValue(v, mode)
		})
	}
	actual := model.NormalizePercent(actualAvg, 0)
	return Display{
		Target: model.NormalizePercent(targetAvg, actual),
		Actual: actual,
	}
}

// desiredValue picks the manual target when the mode and the vent allow it,
// the reported position otherwise. The choice is per vent: group members
// without an explicit manual target still contribute their actual position.
func desiredValue(v model.Vent, mode model.Mode) float64 {
	if mode == model.ModeManual && model.Finite(v.UserTarget) {
		return *v.UserTarget
	}
	return positionValue(v)
}

func positionValue(v model.Vent) float64 {
	if v.Position == nil {
		return math.NaN()
	}
	return *v.Position
}
