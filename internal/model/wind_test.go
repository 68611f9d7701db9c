package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindRangeContains_Simple(t *testing.T) {
	r := WindRange{90, 180}
	assert.True(t, r.Contains(90), "start is inclusive")
	assert.True(t, r.Contains(135))
	assert.False(t, r.Contains(180), "end is exclusive")
	assert.False(t, r.Contains(45))
	assert.False(t, r.Contains(270))
}

func TestWindRangeContains_WrapsNorth(t *testing.T) {
	r := WindRange{300, 60}
	assert.True(t, r.Contains(300))
	assert.True(t, r.Contains(350))
	assert.True(t, r.Contains(0))
	assert.True(t, r.Contains(59))
	assert.False(t, r.Contains(60))
	assert.False(t, r.Contains(180))
}

func TestWindRangeContains_FullCircle(t *testing.T) {
	r := WindRange{120, 120}
	for _, d := range []float64{0, 90, 120, 240, 359} {
		assert.True(t, r.Contains(d))
	}
}

func TestWindRangeContains_NormalizesDegrees(t *testing.T) {
	r := WindRange{-60, 60}
	assert.True(t, r.Contains(350), "range start -60 means 300")
	assert.True(t, r.Contains(410), "direction 410 means 50")
	assert.False(t, r.Contains(180))
}

func TestAnyContains(t *testing.T) {
	ranges := []WindRange{{300, 60}, {180, 270}}
	assert.True(t, AnyContains(ranges, 30))
	assert.True(t, AnyContains(ranges, 200))
	assert.False(t, AnyContains(ranges, 100))
	assert.False(t, AnyContains(nil, 100))
}
