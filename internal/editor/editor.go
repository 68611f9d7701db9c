// Package editor manages the working copy of the installer configuration.
// Edits accumulate locally and are pushed per collection, wholesale, to the
// controller; a failed save keeps the local edits so nothing typed is lost.
package editor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
)

// ErrInvalidValues is returned when a save is blocked by unparseable field
// input; the offending fields carry error flags.
var ErrInvalidValues = errors.New("invalid field values")

// configAPI is the slice of the controller client the editor needs.
type configAPI interface {
	ConfigSnapshot(ctx context.Context) (*controller.ConfigSnapshot, error)
	SaveBoneIO(ctx context.Context, devices []model.BoneIODevice) ([]model.BoneIODevice, error)
	SaveVents(ctx context.Context, vents []model.Vent) ([]model.Vent, error)
	SaveGroups(ctx context.Context, groups []model.Group) ([]model.Group, error)
	SavePlan(ctx context.Context, plan model.Plan) (*model.Plan, error)
	SaveHeating(ctx context.Context, heating model.Heating) (*model.Heating, error)
	SaveExternal(ctx context.Context, external model.External) (*model.External, error)
	ControlSettings(ctx context.Context) (*model.ControlMeta, error)
	SaveControlSettings(ctx context.Context, values map[string]any) (*model.ControlMeta, error)
}

// Option is one entry of a selection list derived from the collections.
type Option struct {
	Value string
	Label string
}

// Editor holds the editable configuration collections and the selection
// lists derived from them. Derived lists are rebuilt synchronously on every
// mutation so cross-references never lag behind an edit.
type Editor struct {
	mu  sync.Mutex
	api configAPI
	log zerolog.Logger

	devices  []model.BoneIODevice
	vents    []model.Vent
	groups   []model.Group
	plan     model.Plan
	heating  model.Heating
	external model.External
	raw      []byte

	control       model.ControlMeta
	controlInputs map[string]string
	controlChecks map[string]bool
	controlErrs   map[string]bool

	deviceOptions []Option
	ventOptions   []Option
	groupOptions  []Option
}

func New(api configAPI, logger zerolog.Logger) *Editor {
	return &Editor{api: api, log: logger}
}

// Load replaces all collections with a fresh snapshot from the controller.
// Unsaved edits are discarded; callers confirm with the operator first.
func (e *Editor) Load(ctx context.Context) error {
	snapshot, err := e.api.ConfigSnapshot(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = snapshot.BoneIO
	e.vents = snapshot.Vents
	e.groups = snapshot.Groups
	if snapshot.Plan != nil {
		e.plan = *snapshot.Plan
	} else {
		e.plan = model.Plan{}
	}
	if snapshot.Heating != nil {
		e.heating = *snapshot.Heating
	} else {
		e.heating = model.Heating{}
	}
	if snapshot.External != nil {
		e.external = *snapshot.External
	} else {
		e.external = model.External{}
	}
	e.raw = snapshot.Raw
	e.reproject()
	return nil
}

// RawConfig returns the exact bytes of the last loaded snapshot.
func (e *Editor) RawConfig() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.raw
}

// Devices returns a copy of the device collection.
func (e *Editor) Devices() []model.BoneIODevice {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.BoneIODevice, len(e.devices))
	copy(out, e.devices)
	return out
}

// AddDevice appends a device. A blank id is allowed while the operator is
// still typing; validation happens at save time on the controller.
func (e *Editor) AddDevice(d model.BoneIODevice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices = append(e.devices, d)
	e.reproject()
}

// RemoveDevice deletes by index. Vents referencing the removed device keep
// their reference; dangling references render as a warning, never an error.
func (e *Editor) RemoveDevice(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.devices) {
		return false
	}
	e.devices = append(e.devices[:index], e.devices[index+1:]...)
	e.reproject()
	return true
}

// UpdateDevice replaces the device at index.
func (e *Editor) UpdateDevice(index int, d model.BoneIODevice) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.devices) {
		return false
	}
	e.devices[index] = d
	e.reproject()
	return true
}

// Vents returns a copy of the vent collection.
func (e *Editor) Vents() []model.Vent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Vent, len(e.vents))
	copy(out, e.vents)
	return out
}

// AddVent appends a vent, assigning the next free numeric id.
func (e *Editor) AddVent(v model.Vent) model.Vent {
	e.mu.Lock()
	defer e.mu.Unlock()
	v.ID = e.nextVentID()
	e.vents = append(e.vents, v)
	e.reproject()
	return v
}

// RemoveVent deletes by id. Group membership lists are left untouched.
func (e *Editor) RemoveVent(ventID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range e.vents {
		if v.ID == ventID {
			e.vents = append(e.vents[:i], e.vents[i+1:]...)
			e.reproject()
			return true
		}
	}
	return false
}

// UpdateVent replaces the vent with the same id.
func (e *Editor) UpdateVent(v model.Vent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.vents {
		if e.vents[i].ID == v.ID {
			e.vents[i] = v
			e.reproject()
			return true
		}
	}
	return false
}

// Groups returns a copy of the group collection.
func (e *Editor) Groups() []model.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Group, len(e.groups))
	copy(out, e.groups)
	return out
}

// AddGroup appends a group.
func (e *Editor) AddGroup(g model.Group) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groups = append(e.groups, g)
	e.reproject()
}

// RemoveGroup deletes by id. Plan stages naming the group keep the name.
func (e *Editor) RemoveGroup(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, g := range e.groups {
		if g.ID == groupID {
			e.groups = append(e.groups[:i], e.groups[i+1:]...)
			e.reproject()
			return true
		}
	}
	return false
}

// UpdateGroup replaces the group with the same id.
func (e *Editor) UpdateGroup(g model.Group) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.groups {
		if e.groups[i].ID == g.ID {
			e.groups[i] = g
			e.reproject()
			return true
		}
	}
	return false
}

// Plan returns a copy of the staged plan.
func (e *Editor) Plan() model.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.plan
	p.Stages = make([]model.Stage, len(e.plan.Stages))
	copy(p.Stages, e.plan.Stages)
	return p
}

// SetPlan replaces the staged plan.
func (e *Editor) SetPlan(p model.Plan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plan = p
}

// MoveStage swaps a stage with its neighbor. Only adjacent moves exist so
// reordering stays reviewable one step at a time.
func (e *Editor) MoveStage(index, delta int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan.MoveStage(index, delta)
}

// Heating returns the heating configuration.
func (e *Editor) Heating() model.Heating {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heating
}

// SetHeating replaces the heating configuration.
func (e *Editor) SetHeating(h model.Heating) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heating = h
}

// External returns the external-connector configuration.
func (e *Editor) External() model.External {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.external
}

// SetExternal replaces the external-connector configuration.
func (e *Editor) SetExternal(x model.External) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.external = x
}

// SaveDevices pushes the device collection. On success the server's echoed
// copy replaces the working copy; on failure local edits stay as they are.
func (e *Editor) SaveDevices(ctx context.Context) error {
	e.mu.Lock()
	devices := make([]model.BoneIODevice, len(e.devices))
	copy(devices, e.devices)
	e.mu.Unlock()

	saved, err := e.api.SaveBoneIO(ctx, devices)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.devices = saved
	e.reproject()
	e.mu.Unlock()
	e.log.Info().Int("devices", len(saved)).Msg("Device collection saved")
	return nil
}

// SaveVents pushes the vent collection.
func (e *Editor) SaveVents(ctx context.Context) error {
	e.mu.Lock()
	vents := make([]model.Vent, len(e.vents))
	copy(vents, e.vents)
	e.mu.Unlock()

	saved, err := e.api.SaveVents(ctx, vents)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.vents = saved
	e.reproject()
	e.mu.Unlock()
	e.log.Info().Int("vents", len(saved)).Msg("Vent collection saved")
	return nil
}

// SaveGroups pushes the group collection.
func (e *Editor) SaveGroups(ctx context.Context) error {
	e.mu.Lock()
	groups := make([]model.Group, len(e.groups))
	copy(groups, e.groups)
	e.mu.Unlock()

	saved, err := e.api.SaveGroups(ctx, groups)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.groups = saved
	e.reproject()
	e.mu.Unlock()
	e.log.Info().Int("groups", len(saved)).Msg("Group collection saved")
	return nil
}

// SavePlan pushes the staged plan.
func (e *Editor) SavePlan(ctx context.Context) error {
	plan := e.Plan()
	saved, err := e.api.SavePlan(ctx, plan)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.plan = *saved
	e.mu.Unlock()
	e.log.Info().Int("stages", len(saved.Stages)).Msg("Plan saved")
	return nil
}

// SaveHeating pushes the heating configuration.
func (e *Editor) SaveHeating(ctx context.Context) error {
	heating := e.Heating()
	saved, err := e.api.SaveHeating(ctx, heating)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.heating = *saved
	e.mu.Unlock()
	return nil
}

// SaveExternal pushes the external-connector configuration.
func (e *Editor) SaveExternal(ctx context.Context) error {
	external := e.External()
	saved, err := e.api.SaveExternal(ctx, external)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.external = *saved
	e.mu.Unlock()
	return nil
}

// LoadControl replaces the control-parameter working copy with the typed set
// from the installer surface. Unsaved control edits are discarded.
func (e *Editor) LoadControl(ctx context.Context) error {
	meta, err := e.api.ControlSettings(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.control = *meta
	e.projectControl()
	return nil
}

// Control returns the control-parameter metadata, both partitions.
func (e *Editor) Control() model.ControlMeta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.control
}

// ControlInput returns the raw text for a non-bool control field.
func (e *Editor) ControlInput(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlInputs[key]
}

// ControlChecked returns the state of a bool control field.
func (e *Editor) ControlChecked(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlChecks[key]
}

// SetControlInput stores raw text for a control field and clears its error
// flag; the value is parsed only at save time.
func (e *Editor) SetControlInput(key, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.controlInputs == nil {
		e.controlInputs = make(map[string]string)
	}
	e.controlInputs[key] = text
	delete(e.controlErrs, key)
}

// SetControlChecked stores the state of a bool control field.
func (e *Editor) SetControlChecked(key string, checked bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.controlChecks == nil {
		e.controlChecks = make(map[string]bool)
	}
	e.controlChecks[key] = checked
}

// ControlFieldError reports whether the last save flagged the field.
func (e *Editor) ControlFieldError(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlErrs[key]
}

// SaveControl validates and pushes the control parameters wholesale. Bool
// fields always go out; an empty numeric input is omitted so the controller
// keeps its current value; an unparseable one flags the field and nothing is
// sent. On success the server's echoed set replaces the working copy.
func (e *Editor) SaveControl(ctx context.Context) error {
	e.mu.Lock()
	if e.controlErrs == nil {
		e.controlErrs = make(map[string]bool)
	}
	values := make(map[string]any)
	invalid := false
	for _, field := range append(append([]model.ControlField{}, e.control.Dashboard...), e.control.Advanced...) {
		switch field.Type {
		case model.ControlBool:
			values[field.Key] = e.controlChecks[field.Key]
		case model.ControlString:
			values[field.Key] = strings.TrimSpace(e.controlInputs[field.Key])
		default:
			ptr, err := OptionalFloat(e.controlInputs[field.Key])
			if err != nil {
				e.controlErrs[field.Key] = true
				invalid = true
				continue
			}
			if ptr == nil {
				continue
			}
			if field.Type == model.ControlInt {
				if *ptr != math.Trunc(*ptr) {
					e.controlErrs[field.Key] = true
					invalid = true
					continue
				}
				values[field.Key] = int(*ptr)
			} else {
				values[field.Key] = *ptr
			}
		}
	}
	e.mu.Unlock()

	if invalid {
		e.log.Warn().Msg("Control save blocked by invalid field values")
		return ErrInvalidValues
	}

	saved, err := e.api.SaveControlSettings(ctx, values)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.control = *saved
	e.projectControl()
	e.mu.Unlock()
	e.log.Info().Int("values", len(values)).Msg("Control parameters saved")
	return nil
}

// projectControl rebuilds the raw inputs from the typed field values.
// Callers hold e.mu.
func (e *Editor) projectControl() {
	e.controlInputs = make(map[string]string)
	e.controlChecks = make(map[string]bool)
	e.controlErrs = make(map[string]bool)
	for _, field := range append(append([]model.ControlField{}, e.control.Dashboard...), e.control.Advanced...) {
		if field.Type == model.ControlBool {
			e.controlChecks[field.Key] = truthy(field.Value)
			continue
		}
		e.controlInputs[field.Key] = controlText(field.Value)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t == "true" || t == "1" || t == "yes"
	default:
		return false
	}
}

// controlText renders a field value as input text without trailing zeros.
func controlText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return trimFloat(t)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// DeviceOptions lists device ids for the vent form's device select.
func (e *Editor) DeviceOptions() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Option, len(e.deviceOptions))
	copy(out, e.deviceOptions)
	return out
}

// VentOptions lists vents for membership pickers and manual-command targets.
func (e *Editor) VentOptions() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Option, len(e.ventOptions))
	copy(out, e.ventOptions)
	return out
}

// GroupOptions lists groups for stage assignment and manual-command targets.
func (e *Editor) GroupOptions() []Option {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Option, len(e.groupOptions))
	copy(out, e.groupOptions)
	return out
}

// DanglingVentRefs reports group members that no longer match a vent id.
// Purely informational; saves go through regardless.
func (e *Editor) DanglingVentRefs() map[string][]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	known := make(map[int]bool, len(e.vents))
	for _, v := range e.vents {
		known[v.ID] = true
	}
	var dangling map[string][]int
	for _, g := range e.groups {
		for _, id := range g.Vents {
			if !known[id] {
				if dangling == nil {
					dangling = make(map[string][]int)
				}
				dangling[g.ID] = append(dangling[g.ID], id)
			}
		}
	}
	return dangling
}

// reproject rebuilds the derived selection lists. Callers hold e.mu.
func (e *Editor) reproject() {
	e.deviceOptions = e.deviceOptions[:0]
	for _, d := range e.devices {
		label := d.ID
		if d.Description != "" {
			label = d.ID + " (" + d.Description + ")"
		}
		e.deviceOptions = append(e.deviceOptions, Option{Value: d.ID, Label: label})
	}

	e.ventOptions = e.ventOptions[:0]
	for _, v := range e.vents {
		label := v.Name
		if label == "" {
			label = "Vent " + strconv.Itoa(v.ID)
		}
		e.ventOptions = append(e.ventOptions, Option{Value: strconv.Itoa(v.ID), Label: label})
	}
	sort.Slice(e.ventOptions, func(i, j int) bool {
		return e.ventOptions[i].Label < e.ventOptions[j].Label
	})

	e.groupOptions = e.groupOptions[:0]
	for _, g := range e.groups {
		label := g.Name
		if label == "" {
			label = g.ID
		}
		e.groupOptions = append(e.groupOptions, Option{Value: g.ID, Label: label})
	}
}

// nextVentID picks max+1 so removed ids are not reused within a session.
// Callers hold e.mu.
func (e *Editor) nextVentID() int {
	next := 1
	for _, v := range e.vents {
		if v.ID >= next {
			next = v.ID + 1
		}
	}
	return next
}
