package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/farmcare/ventpanel/internal/model"
)

// Installer surface. Every endpoint here requires the admin token; calls
// without one fail locally with ErrMissingToken before touching the network.

// ConfigSnapshot fetches the full installer configuration, keeping the exact
// response bytes for the raw-config view.
func (c *Client) ConfigSnapshot(ctx context.Context) (*ConfigSnapshot, error) {
	token := c.token()
	if token == "" {
		return nil, ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/installer/config", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-admin-token", token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var snapshot ConfigSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	snapshot.Raw = raw
	return &snapshot, nil
}

// ControlSettings fetches the typed control parameter set.
func (c *Client) ControlSettings(ctx context.Context) (*model.ControlMeta, error) {
	var meta model.ControlMeta
	if err := c.doJSON(ctx, http.MethodGet, "/installer/config/control", nil, true, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveControlSettings replaces control parameter values wholesale and returns
// the refreshed set.
func (c *Client) SaveControlSettings(ctx context.Context, values map[string]any) (*model.ControlMeta, error) {
	var meta model.ControlMeta
	body := map[string]any{"values": values}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/control", body, true, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SensorsOverview fetches the diagnostics sensor snapshot.
func (c *Client) SensorsOverview(ctx context.Context) (*SensorOverview, error) {
	var overview SensorOverview
	if err := c.doJSON(ctx, http.MethodGet, "/installer/config/sensors", nil, true, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// SaveBoneIO replaces the device collection wholesale.
func (c *Client) SaveBoneIO(ctx context.Context, devices []model.BoneIODevice) ([]model.BoneIODevice, error) {
	var saved []model.BoneIODevice
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/boneio", devices, true, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveVents replaces the vent collection wholesale.
func (c *Client) SaveVents(ctx context.Context, vents []model.Vent) ([]model.Vent, error) {
	var saved []model.Vent
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/vents", vents, true, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveGroups replaces the group collection wholesale.
func (c *Client) SaveGroups(ctx context.Context, groups []model.Group) ([]model.Group, error) {
	var saved []model.Group
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/groups", groups, true, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// SavePlan replaces the staged plan wholesale.
func (c *Client) SavePlan(ctx context.Context, plan model.Plan) (*model.Plan, error) {
	var saved model.Plan
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/plan", plan, true, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// SaveHeating replaces the heating configuration.
func (c *Client) SaveHeating(ctx context.Context, heating model.Heating) (*model.Heating, error) {
	var saved model.Heating
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/heating", heating, true, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// SaveExternal replaces the external-connector configuration.
func (c *Client) SaveExternal(ctx context.Context, external model.External) (*model.External, error) {
	var saved model.External
	if err := c.doJSON(ctx, http.MethodPost, "/installer/config/external", external, true, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// CalibrateAll starts a full travel calibration on every vent.
func (c *Client) CalibrateAll(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/installer/calibrate/all", nil, true, nil)
}

// TestStatus fetches the diagnostics snapshot.
func (c *Client) TestStatus(ctx context.Context) (*TestStatus, error) {
	var status TestStatus
	if err := c.doJSON(ctx, http.MethodGet, "/installer/test/status", nil, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetTestMode toggles the commissioning test mode. This is orthogonal to the
// auto/manual control authority.
func (c *Client) SetTestMode(ctx context.Context, enabled bool) (*TestStatus, error) {
	var status TestStatus
	body := map[string]bool{"set_mode": enabled}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/test/control", body, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SendManualCommand issues a raw actuator command bypassing the plan.
func (c *Client) SendManualCommand(ctx context.Context, scope model.Scope, target string, value float64) (*TestStatus, error) {
	var status TestStatus
	manual := map[string]any{"scope": scope, "value": value}
	if target != "" {
		manual["target"] = target
	} else {
		manual["target"] = nil
	}
	body := map[string]any{"manual": manual}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/test/control", body, true, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ApplyOverrides submits sensor overrides and returns the harness state.
func (c *Client) ApplyOverrides(ctx context.Context, overrides map[string]float64) (*TestMode, error) {
	var mode TestMode
	body := map[string]any{"overrides": overrides}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/test/simulate", body, true, &mode); err != nil {
		return nil, err
	}
	return &mode, nil
}

// ResetOverrides clears all sensor overrides.
func (c *Client) ResetOverrides(ctx context.Context) (*TestMode, error) {
	var mode TestMode
	body := map[string]any{"reset": true}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/test/simulate", body, true, &mode); err != nil {
		return nil, err
	}
	return &mode, nil
}

// TestLogs fetches controller log lines of the given kind.
func (c *Client) TestLogs(ctx context.Context, kind string, limit int) ([]string, error) {
	var resp struct {
		Entries []string `json:"entries"`
	}
	path := fmt.Sprintf("/installer/test/logs?kind=%s&limit=%d", url.QueryEscape(kind), limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Ping probes connectivity to the named targets.
func (c *Client) Ping(ctx context.Context, targets []string) ([]PingResult, error) {
	var resp struct {
		Results []PingResult `json:"results"`
	}
	body := map[string]any{"targets": targets}
	if err := c.doJSON(ctx, http.MethodPost, "/installer/test/ping", body, true, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}
