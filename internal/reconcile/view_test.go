package reconcile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmcare/ventpanel/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestVent_AutoFollowsActual(t *testing.T) {
	v := model.Vent{ID: 1, Position: fp(40), UserTarget: fp(80)}
	d := Vent(v, model.ModeAuto)
	assert.Equal(t, 40, d.Target, "auto ignores the manual target")
	assert.Equal(t, 40, d.Actual)
}

func TestVent_ManualHonorsUserTarget(t *testing.T) {
	v := model.Vent{ID: 1, Position: fp(40), UserTarget: fp(80)}
	d := Vent(v, model.ModeManual)
	assert.Equal(t, 80, d.Target)
	assert.Equal(t, 40, d.Actual)
}

func TestVent_ManualWithoutTargetFallsBack(t *testing.T) {
	v := model.Vent{ID: 1, Position: fp(40)}
	d := Vent(v, model.ModeManual)
	assert.Equal(t, 40, d.Target)
	assert.Equal(t, 40, d.Actual)
}

func TestVent_NonFiniteTargetFallsBackToActual(t *testing.T) {
	v := model.Vent{ID: 1, Position: fp(40), UserTarget: fp(math.NaN())}
	d := Vent(v, model.ModeManual)
	assert.Equal(t, 40, d.Target)
}

func TestVent_NoDataRendersZero(t *testing.T) {
	d := Vent(model.Vent{ID: 1}, model.ModeManual)
	assert.Equal(t, 0, d.Target)
	assert.Equal(t, 0, d.Actual)
}

func TestInstallation_AutoAverages(t *testing.T) {
	vents := []model.Vent{
		{ID: 1, Position: fp(40)},
		{ID: 2, Position: fp(60)},
	}
	d := Installation(vents, model.ModeAuto)
	assert.Equal(t, 50, d.Target)
	assert.Equal(t, 50, d.Actual)
}

func TestInstallation_ManualMixesTargetsAndPositions(t *testing.T) {
	// One vent with an explicit manual target, one without: the target side
	// averages 80 and 60, the actual side 40 and 60.
	vents := []model.Vent{
		{ID: 1, Position: fp(40), UserTarget: fp(80)},
		{ID: 2, Position: fp(60)},
	}
	d := Installation(vents, model.ModeManual)
	assert.Equal(t, 70, d.Target)
	assert.Equal(t, 50, d.Actual)
}

func TestInstallation_Empty(t *testing.T) {
	d := Installation(nil, model.ModeManual)
	assert.Equal(t, 0, d.Target)
	assert.Equal(t, 0, d.Actual)
}

func TestInstallation_AveragesBeforeRounding(t *testing.T) {
	vents := []model.Vent{
		{ID: 1, Position: fp(0.4)},
		{ID: 2, Position: fp(0.4)},
		{ID: 3, Position: fp(0.4)},
	}
	// Per-member rounding would give 0; the single rounding step sees 0.4.
	d := Installation(vents, model.ModeAuto)
	assert.Equal(t, 0, d.Actual)

	vents = []model.Vent{
		{ID: 1, Position: fp(49.4)},
		{ID: 2, Position: fp(49.8)},
	}
	d = Installation(vents, model.ModeAuto)
	assert.Equal(t, 50, d.Actual)
}

func TestGroup_OnlyMembersCount(t *testing.T) {
	vents := []model.Vent{
		{ID: 1, Position: fp(20)},
		{ID: 2, Position: fp(80)},
		{ID: 3, Position: fp(100)},
	}
	g := model.Group{ID: "g1", Vents: []int{1, 2}}
	d := Group(g, vents, model.ModeAuto)
	assert.Equal(t, 50, d.Actual)
}

func TestGroup_DanglingMembersDropOut(t *testing.T) {
	vents := []model.Vent{{ID: 1, Position: fp(30)}}
	g := model.Group{ID: "g1", Vents: []int{1, 99}}
	d := Group(g, vents, model.ModeAuto)
	assert.Equal(t, 30, d.Actual)

	empty := model.Group{ID: "g2", Vents: []int{98, 99}}
	d = Group(empty, vents, model.ModeAuto)
	assert.Equal(t, 0, d.Actual)
}
