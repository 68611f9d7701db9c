package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmcare/ventpanel/internal/model"
)

func TestTracker_StartsAuto(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, model.ModeAuto, tr.Mode())
	assert.False(t, tr.IsManual())
	assert.False(t, tr.FormDirty())
}

func TestTracker_ApplyServerMode(t *testing.T) {
	tr := NewTracker()
	tr.ApplyServerMode(model.ModeManual)
	assert.True(t, tr.IsManual())

	tr.ApplyServerMode(model.ModeAuto)
	assert.False(t, tr.IsManual())
}

func TestTracker_IgnoresUnknownMode(t *testing.T) {
	tr := NewTracker()
	tr.ApplyServerMode(model.ModeManual)
	tr.ApplyServerMode(model.Mode("banana"))
	assert.True(t, tr.IsManual(), "garbage from the wire cannot change authority")
}

func TestTracker_FormDirty(t *testing.T) {
	tr := NewTracker()
	tr.MarkFormDirty()
	assert.True(t, tr.FormDirty())
	tr.ClearFormDirty()
	assert.False(t, tr.FormDirty())
}
