// Package controller is the HTTP JSON client for the ventilation controller.
// The controller owns the automation loop and persistence; this client only
// consumes the contract and never interprets sensor data itself.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrMissingToken is returned before any network call when an admin-only
// endpoint is invoked without a stored token. Callers treat it as a silent
// short-circuit so the operator is not nagged twice.
var ErrMissingToken = errors.New("admin token not set")

// TokenSource supplies the current admin token, empty when none is stored.
type TokenSource func() string

// Client talks to the controller's dashboard and installer surfaces.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the given base URL. Outbound calls are rate
// limited so a misbehaving poll loop cannot hammer the controller.
func NewClient(baseURL string, timeout time.Duration, rateLimitRPS float64) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if rateLimitRPS == 0 {
		rateLimitRPS = 10.0
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      func() string { return "" },
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
	}
}

// SetTokenSource wires the persisted admin token into outbound requests.
func (c *Client) SetTokenSource(src TokenSource) {
	if src != nil {
		c.token = src
	}
}

// BaseURL returns the controller address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doJSON performs one request and decodes the response into out (when non-nil).
// The token header is attached whenever a token is stored; requireToken
// additionally refuses the call locally with ErrMissingToken.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireToken bool, out any) error {
	token := c.token()
	if requireToken && token == "" {
		return ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-admin-token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// okResponse is the shape of position-command replies.
type okResponse struct {
	OK bool `json:"ok"`
}

// State fetches the polled installation snapshot.
func (c *Client) State(ctx context.Context) (*State, error) {
	var state State
	if err := c.doJSON(ctx, http.MethodGet, "/api/state", nil, false, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetMode asks the controller to switch control authority and returns the
// server-confirmed mode. Local state must only ever follow the confirmation.
func (c *Client) SetMode(ctx context.Context, mode string) (string, error) {
	var resp struct {
		Mode string `json:"mode"`
	}
	body := map[string]string{"mode": mode}
	if err := c.doJSON(ctx, http.MethodPost, "/api/mode", body, false, &resp); err != nil {
		return "", err
	}
	if resp.Mode == "" {
		resp.Mode = mode
	}
	return resp.Mode, nil
}

// SetVentPosition commands a single vent.
func (c *Client) SetVentPosition(ctx context.Context, ventID, percent int) error {
	return c.position(ctx, fmt.Sprintf("/api/vents/%d", ventID), percent)
}

// SetGroupPosition commands every vent of a group.
func (c *Client) SetGroupPosition(ctx context.Context, groupID string, percent int) error {
	return c.position(ctx, "/api/vents/group/"+groupID, percent)
}

// SetAllPosition commands the whole installation.
func (c *Client) SetAllPosition(ctx context.Context, percent int) error {
	return c.position(ctx, "/api/vents/all", percent)
}

func (c *Client) position(ctx context.Context, path string, percent int) error {
	var resp okResponse
	body := map[string]int{"position": percent}
	if err := c.doJSON(ctx, http.MethodPost, path, body, false, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("controller rejected position command %s", path)
	}
	return nil
}

// SaveControl submits dashboard control parameters and returns the confirmed
// parameter map.
func (c *Client) SaveControl(ctx context.Context, values map[string]any) (map[string]any, error) {
	var resp struct {
		Control map[string]any `json:"control"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/control", values, false, &resp); err != nil {
		return nil, err
	}
	return resp.Control, nil
}

// History fetches the most recent sensor samples, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	path := fmt.Sprintf("/api/history?limit=%d", limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, false, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateStatus fetches the updater state. A 404/503 means the updater is not
// deployed; that is reported as (nil, nil) so the surface can hide quietly.
func (c *Client) UpdateStatus(ctx context.Context) (*UpdateStatus, error) {
	var status UpdateStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/update/status", nil, false, &status)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusServiceUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// CheckUpdate triggers a manual update check. Requires the admin token.
func (c *Client) CheckUpdate(ctx context.Context) (*UpdateStatus, error) {
	var resp struct {
		Status *UpdateStatus `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/update/check", map[string]any{}, true, &resp); err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// RunUpdate installs the pending update. Requires the admin token.
func (c *Client) RunUpdate(ctx context.Context) (*UpdateStatus, error) {
	var resp struct {
		Status *UpdateStatus `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/update/run", map[string]any{}, true, &resp); err != nil {
		return nil, err
	}
	return resp.Status, nil
}
