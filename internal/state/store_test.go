package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
)

func TestStore_EmptyBeforeFirstPoll(t *testing.T) {
	s := NewStore()

	current, at := s.Current()
	assert.Nil(t, current)
	assert.True(t, at.IsZero())
	assert.Nil(t, s.Vents())
	assert.Nil(t, s.Groups())
}

func TestStore_SetState(t *testing.T) {
	s := NewStore()
	s.SetState(&controller.State{
		Mode:   model.ModeManual,
		Vents:  []model.Vent{{ID: 1}},
		Groups: []model.Group{{ID: "north"}},
	})

	current, at := s.Current()
	require.NotNil(t, current)
	assert.False(t, at.IsZero())
	assert.Equal(t, model.ModeManual, current.Mode)
	assert.Len(t, s.Vents(), 1)
	assert.Len(t, s.Groups(), 1)
}

func TestStore_HistoryAndUpdate(t *testing.T) {
	s := NewStore()

	s.SetHistory([]controller.HistoryEntry{{Name: "internal_temp"}})
	entries, at := s.History()
	assert.Len(t, entries, 1)
	assert.False(t, at.IsZero())

	s.SetUpdateStatus(&controller.UpdateStatus{LatestVersion: "1.1.0"})
	status, _ := s.UpdateStatus()
	require.NotNil(t, status)
	assert.Equal(t, "1.1.0", status.LatestVersion)

	// A vanished updater overwrites with nil.
	s.SetUpdateStatus(nil)
	status, _ = s.UpdateStatus()
	assert.Nil(t, status)
}
