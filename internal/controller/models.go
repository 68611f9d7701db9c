package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/farmcare/ventpanel/internal/model"
)

// State is the polled installation snapshot from GET /api/state.
type State struct {
	Mode    model.Mode          `json:"mode"`
	Sensors map[string]*float64 `json:"sensors"`
	Vents   []model.Vent        `json:"vents"`
	Groups  []model.Group       `json:"groups"`
	Config  map[string]any      `json:"config"`
	Heating *model.Heating      `json:"heating,omitempty"`
}

// HistoryEntry is one sensor-history sample.
type HistoryEntry struct {
	TS    time.Time `json:"ts"`
	Name  string    `json:"name"`
	Value *float64  `json:"value"`
}

// UpdateStatus describes the updater state. Enabled is a tri-state: absent
// means the updater did not report it, explicit false hides the surface.
type UpdateStatus struct {
	Enabled        *bool   `json:"enabled,omitempty"`
	CurrentVersion string  `json:"current_version,omitempty"`
	LatestVersion  string  `json:"latest_version,omitempty"`
	Available      bool    `json:"available,omitempty"`
	LastChecked    *string `json:"last_checked,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	Error          string  `json:"error,omitempty"`
	Channel        string  `json:"channel,omitempty"`
}

// Hidden reports whether the update surface should not be shown at all.
func (u *UpdateStatus) Hidden() bool {
	return u == nil || (u.Enabled != nil && !*u.Enabled)
}

// SensorMetric is one named reading in the installer sensors overview.
type SensorMetric struct {
	Value  *float64 `json:"value"`
	Unit   string   `json:"unit,omitempty"`
	Source string   `json:"source,omitempty"`
}

// BusStatus reports one RS-485 bus.
type BusStatus struct {
	Name   string `json:"name,omitempty"`
	Port   string `json:"port,omitempty"`
	Online *bool  `json:"online,omitempty"`
}

// NetworkInterface reports one network interface the controller watches.
type NetworkInterface struct {
	Role      string   `json:"role,omitempty"`
	Name      string   `json:"name,omitempty"`
	IsUp      *bool    `json:"is_up,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// SensorOverview is the installer-side diagnostics snapshot.
type SensorOverview struct {
	Metrics map[string]SensorMetric `json:"metrics"`
	Loops   map[string]float64      `json:"loops,omitempty"`
	RS485   []BusStatus             `json:"rs485,omitempty"`
	Network []NetworkInterface      `json:"network,omitempty"`
}

// ConfigSnapshot is the full installer configuration. Raw keeps the exact
// server bytes for the raw-config view.
type ConfigSnapshot struct {
	BoneIO   []model.BoneIODevice `json:"boneio"`
	Vents    []model.Vent         `json:"vents"`
	Groups   []model.Group        `json:"groups"`
	Plan     *model.Plan          `json:"plan"`
	Heating  *model.Heating       `json:"heating,omitempty"`
	External *model.External      `json:"external,omitempty"`

	Raw []byte `json:"-"`
}

// ManualEntry is one recorded low-level manual command. Targets are vent ids
// or group ids; the wire carries them as numbers or strings interchangeably.
type ManualEntry struct {
	TS      float64  `json:"ts"`
	Type    string   `json:"type"`
	Targets []string `json:"targets"`
	Value   *float64 `json:"value"`
	GroupID string   `json:"group_id,omitempty"`
}

// UnmarshalJSON tolerates numeric target ids.
func (m *ManualEntry) UnmarshalJSON(data []byte) error {
	type alias struct {
		TS      float64       `json:"ts"`
		Type    string        `json:"type"`
		Targets []json.Number `json:"targets"`
		Value   *float64      `json:"value"`
		GroupID string        `json:"group_id"`
	}
	var raw alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	m.TS = raw.TS
	m.Type = raw.Type
	m.Value = raw.Value
	m.GroupID = raw.GroupID
	m.Targets = m.Targets[:0]
	for _, t := range raw.Targets {
		m.Targets = append(m.Targets, t.String())
	}
	return nil
}

// Time converts the unix timestamp.
func (m ManualEntry) Time() time.Time {
	sec := int64(m.TS)
	nsec := int64((m.TS - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// OverrideEntry is one applied override snapshot; empty Values means a reset.
type OverrideEntry struct {
	TS     float64            `json:"ts"`
	Values map[string]float64 `json:"values"`
}

// TestMode is the commissioning harness state.
type TestMode struct {
	Enabled         bool               `json:"enabled"`
	Overrides       map[string]float64 `json:"overrides"`
	ManualHistory   []ManualEntry      `json:"manual_history"`
	OverrideHistory []OverrideEntry    `json:"override_history"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
	UpdatedAt       *float64           `json:"updated_at,omitempty"`
}

// TestVent is a vent as reported by the diagnostics surface.
type TestVent struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	Position     *float64 `json:"position"`
	Target       *float64 `json:"target"`
	Available    bool     `json:"available"`
	BoneIODevice string   `json:"boneio_device,omitempty"`
}

// TestDevice groups diagnostics vents per BoneIO board.
type TestDevice struct {
	Device    string     `json:"device"`
	BaseTopic string     `json:"base_topic,omitempty"`
	Vents     []TestVent `json:"vents"`
}

// TestStatus is the full diagnostics snapshot from /installer/test/status.
type TestStatus struct {
	TestMode TestMode     `json:"test_mode"`
	BoneIO   []TestDevice `json:"boneio"`
	Vents    []TestVent   `json:"vents"`
}

// PingResult is one connectivity probe outcome.
type PingResult struct {
	Name       string   `json:"name"`
	Success    bool     `json:"success"`
	DurationMS *float64 `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// StatusError is a non-2xx response, carrying the body for the operator notice.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("controller returned %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("controller returned %d", e.Code)
}
