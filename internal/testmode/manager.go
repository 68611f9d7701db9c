package testmode

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
	"github.com/farmcare/ventpanel/internal/notify"
)

// testAPI is the slice of the controller client the manager needs.
type testAPI interface {
	TestStatus(ctx context.Context) (*controller.TestStatus, error)
	SetTestMode(ctx context.Context, enabled bool) (*controller.TestStatus, error)
	SendManualCommand(ctx context.Context, scope model.Scope, target string, value float64) (*controller.TestStatus, error)
	ApplyOverrides(ctx context.Context, overrides map[string]float64) (*controller.TestMode, error)
	ResetOverrides(ctx context.Context) (*controller.TestMode, error)
	TestLogs(ctx context.Context, kind string, limit int) ([]string, error)
	Ping(ctx context.Context, targets []string) ([]controller.PingResult, error)
}

// Manager drives the controller's commissioning surface. Every response is
// mirrored into a local Harness, which is the panel's working copy of the
// override state and histories; the cached TestStatus keeps the vent and
// device listing for the diagnostics view. All calls go through the admin
// token.
type Manager struct {
	mu      sync.Mutex
	api     testAPI
	notices *notify.Center
	log     zerolog.Logger

	harness *Harness
	status  *controller.TestStatus
}

func NewManager(api testAPI, notices *notify.Center, logger zerolog.Logger) *Manager {
	return &Manager{
		api:     api,
		notices: notices,
		log:     logger,
		harness: NewHarness(DefaultHistorySize),
	}
}

// Refresh fetches the diagnostics snapshot.
func (m *Manager) Refresh(ctx context.Context) error {
	status, err := m.api.TestStatus(ctx)
	if err != nil {
		return err
	}
	m.setStatus(status)
	return nil
}

// Status returns the last fetched snapshot, nil before the first refresh.
func (m *Manager) Status() *controller.TestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Enabled reports the last known test-mode flag.
func (m *Manager) Enabled() bool {
	return m.harness.Enabled()
}

// Overrides returns the active override set as last mirrored.
func (m *Manager) Overrides() map[string]float64 {
	return m.harness.Snapshot().Overrides
}

// PatchSensors overlays the active overrides onto a sensor reading map, so
// the diagnostics view shows the values the automation would actually see.
func (m *Manager) PatchSensors(sensors map[string]float64) map[string]float64 {
	return m.harness.Patch(sensors)
}

// SetEnabled toggles test mode on the controller.
func (m *Manager) SetEnabled(ctx context.Context, enabled bool) error {
	status, err := m.api.SetTestMode(ctx, enabled)
	if err != nil {
		m.notices.Error("Test mode toggle failed: " + err.Error())
		return err
	}
	m.setStatus(status)
	if enabled {
		m.notices.Success("Test mode enabled")
	} else {
		m.notices.Info("Test mode disabled")
	}
	return nil
}

// SendManual issues a raw actuator command. The controller records it in the
// manual history; the refreshed snapshot carries it back.
func (m *Manager) SendManual(ctx context.Context, scope model.Scope, target string, value float64) error {
	status, err := m.api.SendManualCommand(ctx, scope, target, value)
	if err != nil {
		m.notices.Error("Manual command failed: " + err.Error())
		return err
	}
	m.setStatus(status)
	m.log.Info().
		Str("scope", string(scope)).
		Str("target", target).
		Float64("value", value).
		Msg("Manual test command sent")
	return nil
}

// ApplyOverrides submits sensor overrides. An empty map is a no-op on the
// controller side and leaves the harness state unchanged.
func (m *Manager) ApplyOverrides(ctx context.Context, overrides map[string]float64) error {
	mode, err := m.api.ApplyOverrides(ctx, overrides)
	if err != nil {
		m.notices.Error("Override apply failed: " + err.Error())
		return err
	}
	m.setTestMode(mode)
	if len(overrides) > 0 {
		m.notices.Success("Sensor overrides applied")
	}
	return nil
}

// ResetOverrides clears all sensor overrides.
func (m *Manager) ResetOverrides(ctx context.Context) error {
	mode, err := m.api.ResetOverrides(ctx)
	if err != nil {
		m.notices.Error("Override reset failed: " + err.Error())
		return err
	}
	m.setTestMode(mode)
	m.notices.Info("Sensor overrides cleared")
	return nil
}

// Logs fetches controller log lines of the given kind.
func (m *Manager) Logs(ctx context.Context, kind string, limit int) ([]string, error) {
	return m.api.TestLogs(ctx, kind, limit)
}

// Ping probes connectivity to the named targets.
func (m *Manager) Ping(ctx context.Context, targets []string) ([]controller.PingResult, error) {
	return m.api.Ping(ctx, targets)
}

// RecentManual returns the displayable slice of the mirrored manual history,
// newest first.
func (m *Manager) RecentManual() []ManualRecord {
	return m.harness.RecentManual()
}

// RecentOverrides returns the displayable slice of the mirrored override
// history, newest first.
func (m *Manager) RecentOverrides() []OverrideRecord {
	return m.harness.RecentOverrides()
}

// DescribeManual renders one manual record for the history list.
func DescribeManual(rec ManualRecord) string {
	text := rec.Type
	if len(rec.Targets) > 0 {
		text += " ["
		for i, t := range rec.Targets {
			if i > 0 {
				text += ", "
			}
			text += t
		}
		text += "]"
	}
	if rec.Value != nil {
		text += " -> " + strconv.FormatFloat(*rec.Value, 'f', -1, 64) + "%"
	}
	return text
}

func (m *Manager) setStatus(status *controller.TestStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	m.mirror(&status.TestMode)
}

// setTestMode patches only the test-mode part of the cached snapshot,
// keeping the vent/device listing from the last full refresh.
func (m *Manager) setTestMode(mode *controller.TestMode) {
	if mode == nil {
		return
	}
	m.mu.Lock()
	if m.status == nil {
		m.status = &controller.TestStatus{}
	}
	m.status.TestMode = *mode
	m.mu.Unlock()
	m.mirror(mode)
}

// mirror copies the controller's reported harness state into the local one.
func (m *Manager) mirror(mode *controller.TestMode) {
	m.harness.Mirror(mode.Enabled, mode.Overrides, manualRecords(mode.ManualHistory), overrideRecords(mode.OverrideHistory))
}

func manualRecords(entries []controller.ManualEntry) []ManualRecord {
	records := make([]ManualRecord, len(entries))
	for i, e := range entries {
		records[i] = ManualRecord{
			TS:      e.TS,
			Type:    e.Type,
			Targets: e.Targets,
			Value:   e.Value,
			GroupID: e.GroupID,
		}
	}
	return records
}

func overrideRecords(entries []controller.OverrideEntry) []OverrideRecord {
	records := make([]OverrideRecord, len(entries))
	for i, e := range entries {
		records[i] = OverrideRecord{TS: e.TS, Values: e.Values}
	}
	return records
}
