// Package model holds the typed entity graph the panel works on: BoneIO
// devices, vents, groups, staged plans and control parameters. The server
// is authoritative; everything here is a cached, mutable working copy.
package model

// Mode is the installation-wide control authority.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Scope addresses a position command.
type Scope string

const (
	ScopeAll   Scope = "all"
	ScopeGroup Scope = "group"
	ScopeVent  Scope = "vent"
)

// CloseStrategy selects the close direction of a plan or stage.
type CloseStrategy string

const (
	CloseFIFO CloseStrategy = "fifo"
	CloseLIFO CloseStrategy = "lifo"
)

// StageMode selects serial or parallel group execution within a stage.
type StageMode string

const (
	StageSerial   StageMode = "serial"
	StageParallel StageMode = "parallel"
)

// BoneIODevice is a relay board vents hang off. Leaf entity: referenced by
// vents, never owns anything.
type BoneIODevice struct {
	ID                string `json:"id"`
	BaseTopic         string `json:"base_topic"`
	Description       string `json:"description,omitempty"`
	AvailabilityTopic string `json:"availability_topic,omitempty"`
}

// VentTopics are the MQTT command/feedback topics of a single vent motor.
type VentTopics struct {
	Up      string  `json:"up"`
	Down    string  `json:"down"`
	ErrorIn *string `json:"error_in"`
}

// Vent is one motorized ventilation flap. BoneIODevice is a weak reference:
// it may point at a device that no longer exists and must still render.
// Position, UserTarget and Available are runtime-only, reported by the server
// and never persisted by the editor.
type Vent struct {
	ID                 int        `json:"id"`
	Name               string     `json:"name"`
	BoneIODevice       string     `json:"boneio_device,omitempty"`
	TravelTimeS        float64    `json:"travel_time_s,omitempty"`
	Topics             VentTopics `json:"topics,omitempty"`
	ReversePauseS      *float64   `json:"reverse_pause_s,omitempty"`
	MinMoveS           *float64   `json:"min_move_s,omitempty"`
	CalibrationBufferS *float64   `json:"calibration_buffer_s,omitempty"`
	IgnoreDeltaPercent *float64   `json:"ignore_delta_percent,omitempty"`

	Position   *float64 `json:"position,omitempty"`
	UserTarget *float64 `json:"user_target,omitempty"`
	Available  bool     `json:"available,omitempty"`
}

// Group is a named set of vents operated together, optionally wind-locked.
// Vents may contain ids absent from the vent collection; such entries are
// display-only dangling links, not errors.
type Group struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Vents                []int       `json:"vents"`
	WindLockEnabled      *bool       `json:"wind_lock_enabled,omitempty"`
	WindLockClosePercent *float64    `json:"wind_lock_close_percent"`
	WindUpwindDeg        []WindRange `json:"wind_upwind_deg,omitempty"`
}

// WindLocked reports the wind-lock flag with its default of true.
func (g Group) WindLocked() bool {
	return g.WindLockEnabled == nil || *g.WindLockEnabled
}

// Member reports whether the vent id belongs to this group.
func (g Group) Member(ventID int) bool {
	for _, id := range g.Vents {
		if id == ventID {
			return true
		}
	}
	return false
}

// Stage is one step of the opening/closing plan. CloseStrategy overrides the
// plan default when set.
type Stage struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Mode          StageMode      `json:"mode"`
	StepPercent   float64        `json:"step_percent"`
	DelayS        float64        `json:"delay_s"`
	Groups        []string       `json:"groups"`
	CloseStrategy *CloseStrategy `json:"close_strategy,omitempty"`
}

// Plan is the ordered stage sequence plus the default close strategy.
// Stage order is significant and only ever changes by adjacent swaps.
type Plan struct {
	CloseStrategy CloseStrategy `json:"close_strategy"`
	Stages        []Stage       `json:"stages"`
}

// EffectiveStrategy resolves a stage's close strategy against the plan default.
func (p Plan) EffectiveStrategy(s Stage) CloseStrategy {
	if s.CloseStrategy != nil && *s.CloseStrategy != "" {
		return *s.CloseStrategy
	}
	if p.CloseStrategy == "" {
		return CloseFIFO
	}
	return p.CloseStrategy
}

// MoveStage swaps the stage at index with its neighbor (delta -1 or +1).
// Returns false when the move would leave the slice or delta is not a
// single step; intermediate orders stay valid for incremental re-render.
func (p *Plan) MoveStage(index, delta int) bool {
	if delta != -1 && delta != 1 {
		return false
	}
	j := index + delta
	if index < 0 || index >= len(p.Stages) || j < 0 || j >= len(p.Stages) {
		return false
	}
	p.Stages[index], p.Stages[j] = p.Stages[j], p.Stages[index]
	return true
}

// Heating is the heating-valve configuration collection.
type Heating struct {
	Enabled      bool     `json:"enabled"`
	Topic        *string  `json:"topic"`
	PayloadOn    *string  `json:"payload_on"`
	PayloadOff   *string  `json:"payload_off"`
	DayTargetC   *float64 `json:"day_target_c"`
	NightTargetC *float64 `json:"night_target_c"`
	HysteresisC  *float64 `json:"hysteresis_c"`
	DayStart     *string  `json:"day_start"`
	NightStart   *string  `json:"night_start"`
}

// External is the external-connector configuration collection.
type External struct {
	Enabled  bool    `json:"enabled"`
	Protocol string  `json:"protocol"`
	Host     string  `json:"host"`
	Port     int     `json:"port"`
	Path     string  `json:"path"`
	Token    *string `json:"token"`
}

// ControlType is the declared type of a control parameter.
type ControlType string

const (
	ControlBool   ControlType = "bool"
	ControlInt    ControlType = "int"
	ControlFloat  ControlType = "float"
	ControlString ControlType = "str"
)

// ControlField describes one tunable controller parameter. The dashboard and
// advanced categories differ only in presentation, never in validation.
type ControlField struct {
	Key         string      `json:"key"`
	Value       any         `json:"value"`
	Category    string      `json:"category"`
	Type        ControlType `json:"type"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ControlMeta is the full control-parameter set as served by the installer
// surface, partitioned for presentation.
type ControlMeta struct {
	Dashboard []ControlField `json:"dashboard"`
	Advanced  []ControlField `json:"advanced"`
	Fields    map[string]any `json:"fields"`
}

// FieldByKey searches both partitions.
func (m ControlMeta) FieldByKey(key string) (ControlField, bool) {
	for _, f := range m.Dashboard {
		if f.Key == key {
			return f, true
		}
	}
	for _, f := range m.Advanced {
		if f.Key == key {
			return f, true
		}
	}
	return ControlField{}, false
}
