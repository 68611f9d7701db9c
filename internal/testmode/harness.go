// Package testmode drives the commissioning test panel: sensor override
// simulations, raw manual actuator commands and their histories.
package testmode

import (
	"math"
	"sync"
	"time"
)

// DefaultHistorySize bounds the override and manual histories.
const DefaultHistorySize = 100

// DisplayHistory is how many history entries the panel shows.
const DisplayHistory = 5

// OverrideRecord is one applied override set; empty Values marks a reset.
type OverrideRecord struct {
	TS     float64
	Values map[string]float64
}

// ManualRecord is one recorded raw actuator command.
type ManualRecord struct {
	TS      float64
	Type    string
	Targets []string
	Value   *float64
	GroupID string
}

// Snapshot is the full harness state.
type Snapshot struct {
	Enabled         bool
	Overrides       map[string]float64
	ManualHistory   []ManualRecord
	OverrideHistory []OverrideRecord
	Metadata        map[string]any
	UpdatedAt       *float64
}

// Harness keeps the simulation state: the enabled flag, the active sensor
// overrides and two bounded most-recent-first histories. Entries past the
// bound fall off the old end.
type Harness struct {
	mu          sync.Mutex
	enabled     bool
	overrides   map[string]float64
	manual      []ManualRecord
	overrideLog []OverrideRecord
	metadata    map[string]any
	updatedAt   *float64
	historySize int
	now         func() float64
}

func NewHarness(historySize int) *Harness {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Harness{
		overrides:   make(map[string]float64),
		metadata:    make(map[string]any),
		historySize: historySize,
		now:         func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetEnabled toggles test mode. Disabling clears the active overrides but
// keeps both histories for the post-mortem.
func (h *Harness) SetEnabled(enabled bool, reason string) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
	if !enabled {
		h.overrides = make(map[string]float64)
	}
	h.touch()
	if reason != "" {
		h.metadata["reason"] = reason
	}
	return h.snapshotLocked()
}

// Enabled reports whether test mode is on.
func (h *Harness) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// ApplyOverrides merges finite values into the active set. A non-empty
// merge implies test mode and prepends a history record; applying nothing
// changes nothing but the timestamp, so a double apply is idempotent.
func (h *Harness) ApplyOverrides(values map[string]float64) Snapshot {
	cleaned := make(map[string]float64, len(values))
	for key, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		cleaned[key] = v
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(cleaned) > 0 {
		h.enabled = true
		for key, v := range cleaned {
			h.overrides[key] = v
		}
		h.overrideLog = prependOverride(h.overrideLog, OverrideRecord{
			TS:     h.now(),
			Values: cleaned,
		}, h.historySize)
	}
	h.touch()
	return h.snapshotLocked()
}

// Reset clears all overrides and records the reset as an empty entry.
func (h *Harness) Reset() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overrides = make(map[string]float64)
	h.overrideLog = prependOverride(h.overrideLog, OverrideRecord{
		TS:     h.now(),
		Values: map[string]float64{},
	}, h.historySize)
	h.touch()
	return h.snapshotLocked()
}

// Patch overlays the active overrides onto a sensor reading map. Outside
// test mode, or with no overrides, the input comes back untouched.
func (h *Harness) Patch(sensors map[string]float64) map[string]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled || len(h.overrides) == 0 {
		return sensors
	}
	patched := make(map[string]float64, len(sensors)+len(h.overrides))
	for k, v := range sensors {
		patched[k] = v
	}
	for k, v := range h.overrides {
		patched[k] = v
	}
	return patched
}

// RecordManual prepends a raw actuator command record.
func (h *Harness) RecordManual(rec ManualRecord) {
	if rec.TS == 0 {
		rec.TS = h.now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.manual = prependManual(h.manual, rec, h.historySize)
	h.touch()
}

// Mirror replaces the harness state wholesale with the controller's reported
// state. Histories are bounded the same way locally recorded ones are.
func (h *Harness) Mirror(enabled bool, overrides map[string]float64, manual []ManualRecord, overrideLog []OverrideRecord) {
	cloned := make(map[string]float64, len(overrides))
	for k, v := range overrides {
		cloned[k] = v
	}
	if len(manual) > h.historySize {
		manual = manual[:h.historySize]
	}
	if len(overrideLog) > h.historySize {
		overrideLog = overrideLog[:h.historySize]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
	h.overrides = cloned
	h.manual = append(h.manual[:0:0], manual...)
	h.overrideLog = append(h.overrideLog[:0:0], overrideLog...)
	h.touch()
}

// SetMetadata stores an informational key.
func (h *Harness) SetMetadata(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata[key] = value
	h.touch()
}

// Snapshot exports the full state.
func (h *Harness) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// RecentManual returns at most DisplayHistory manual records, newest first.
func (h *Harness) RecentManual() []ManualRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.manual)
	if n > DisplayHistory {
		n = DisplayHistory
	}
	out := make([]ManualRecord, n)
	copy(out, h.manual[:n])
	return out
}

// RecentOverrides returns at most DisplayHistory override records, newest first.
func (h *Harness) RecentOverrides() []OverrideRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.overrideLog)
	if n > DisplayHistory {
		n = DisplayHistory
	}
	out := make([]OverrideRecord, n)
	copy(out, h.overrideLog[:n])
	return out
}

func (h *Harness) touch() {
	ts := h.now()
	h.updatedAt = &ts
}

func (h *Harness) snapshotLocked() Snapshot {
	overrides := make(map[string]float64, len(h.overrides))
	for k, v := range h.overrides {
		overrides[k] = v
	}
	metadata := make(map[string]any, len(h.metadata))
	for k, v := range h.metadata {
		metadata[k] = v
	}
	manual := make([]ManualRecord, len(h.manual))
	copy(manual, h.manual)
	overrideLog := make([]OverrideRecord, len(h.overrideLog))
	copy(overrideLog, h.overrideLog)
	return Snapshot{
		Enabled:         h.enabled,
		Overrides:       overrides,
		ManualHistory:   manual,
		OverrideHistory: overrideLog,
		Metadata:        metadata,
		UpdatedAt:       h.updatedAt,
	}
}

func prependManual(list []ManualRecord, rec ManualRecord, bound int) []ManualRecord {
	list = append([]ManualRecord{rec}, list...)
	if len(list) > bound {
		list = list[:bound]
	}
	return list
}

func prependOverride(list []OverrideRecord, rec OverrideRecord, bound int) []OverrideRecord {
	list = append([]OverrideRecord{rec}, list...)
	if len(list) > bound {
		list = list[:bound]
	}
	return list
}
