// Package session tracks control authority and the dirty state of the
// control-parameter form. Mode is only ever updated from a server-confirmed
// response because mode changes affect every operator's view; the form flag
// is purely local.
package session

import (
	"sync"

	"github.com/farmcare/ventpanel/internal/model"
)

// Tracker is the mode / dirty-state machine. The machine has no terminal
// state; it runs for the lifetime of the session starting from auto.
type Tracker struct {
	mu        sync.RWMutex
	mode      model.Mode
	formDirty bool
}

// NewTracker starts in auto, the assumed authority before the first fetch.
func NewTracker() *Tracker {
	return &Tracker{mode: model.ModeAuto}
}

// Mode returns the last server-confirmed control authority.
func (t *Tracker) Mode() model.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// IsManual reports whether the operator currently holds authority.
func (t *Tracker) IsManual() bool {
	return t.Mode() == model.ModeManual
}

// ApplyServerMode records a confirmed mode. Unknown values are ignored so a
// malformed response cannot wedge the tracker.
func (t *Tracker) ApplyServerMode(mode model.Mode) {
	if mode != model.ModeAuto && mode != model.ModeManual {
		return
	}
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()
}

// MarkFormDirty flags the control form as user-edited. While set, polling
// must not overwrite form inputs.
func (t *Tracker) MarkFormDirty() {
	t.mu.Lock()
	t.formDirty = true
	t.mu.Unlock()
}

// ClearFormDirty resets the flag after a successful save or explicit reload.
func (t *Tracker) ClearFormDirty() {
	t.mu.Lock()
	t.formDirty = false
	t.mu.Unlock()
}

// FormDirty reports whether unsaved form edits exist.
func (t *Tracker) FormDirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.formDirty
}
