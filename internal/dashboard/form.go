// Package dashboard renders the operator view: sensor cards, vent and group
// rows with reconciled positions, the config summary and the control form.
// Everything here is pure presentation over the last snapshot; commands go
// through the dispatcher.
package dashboard

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/farmcare/ventpanel/internal/notify"
	"github.com/farmcare/ventpanel/internal/session"
)

// FieldSpec describes one control-form field.
type FieldSpec struct {
	Key      string
	Label    string
	Step     string
	Decimals int
	Unit     string
	Checkbox bool
}

// ControlFields is the fixed control-form layout, in display order.
var ControlFields = []FieldSpec{
	{Key: "target_temp_c", Label: "Target temperature (C)", Step: "0.5", Decimals: 1, Unit: "C"},
	{Key: "humidity_thr", Label: "Maximum humidity (%)", Step: "1", Decimals: 0, Unit: "%"},
	{Key: "min_open_hum_percent", Label: "Minimum opening at high humidity (%)", Step: "1", Decimals: 0, Unit: "%"},
	{Key: "wind_risk_ms", Label: "Risk wind speed (m/s)", Step: "0.5", Decimals: 1, Unit: "m/s"},
	{Key: "wind_crit_ms", Label: "Critical wind speed (m/s)", Step: "0.5", Decimals: 1, Unit: "m/s"},
	{Key: "risk_open_limit_percent", Label: "Max opening at risk wind (%)", Step: "1", Decimals: 0, Unit: "%"},
	{Key: "rain_threshold", Label: "Rain threshold (mm)", Step: "0.1", Decimals: 1, Unit: "mm"},
	{Key: "step_percent", Label: "Stage step size (%)", Step: "1", Decimals: 0, Unit: "%"},
	{Key: "step_delay_s", Label: "Delay between steps (s)", Step: "1", Decimals: 0, Unit: "s"},
	{Key: "group_delay_s", Label: "Delay between groups (s)", Step: "1", Decimals: 0, Unit: "s"},
	{Key: "allow_humidity_override", Label: "Allow crack for high humidity", Checkbox: true},
	{Key: "crit_hum_crack_percent", Label: "Crack percent at high humidity (%)", Step: "1", Decimals: 0, Unit: "%"},
}

// controlAPI is the slice of the controller client the form needs.
type controlAPI interface {
	SaveControl(ctx context.Context, values map[string]any) (map[string]any, error)
}

// Form holds the control-form input state. Numeric inputs are kept as the
// raw text the operator typed; parsing happens only at save time so a
// half-typed number is never mangled.
type Form struct {
	mu      sync.Mutex
	api     controlAPI
	session *session.Tracker
	notices *notify.Center
	log     zerolog.Logger

	inputs map[string]string
	checks map[string]bool
	errs   map[string]bool
	config map[string]any
	built  bool
}

func NewForm(api controlAPI, tracker *session.Tracker, notices *notify.Center, logger zerolog.Logger) *Form {
	return &Form{
		api:     api,
		session: tracker,
		notices: notices,
		log:     logger,
		inputs:  make(map[string]string),
		checks:  make(map[string]bool),
		errs:    make(map[string]bool),
	}
}

// Refresh pushes polled config values into the form. The first snapshot
// always populates; afterwards a dirty form is left alone so polling never
// overwrites what the operator is typing.
func (f *Form) Refresh(config map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = config
	if f.built && f.session.FormDirty() {
		return
	}
	for _, field := range ControlFields {
		value, ok := config[field.Key]
		if field.Checkbox {
			f.checks[field.Key] = ok && truthy(value)
			continue
		}
		if !ok || value == nil {
			f.inputs[field.Key] = ""
			continue
		}
		f.inputs[field.Key] = formatConfigValue(value)
	}
	f.built = true
}

// SetInput records typed text for a numeric field and marks the form dirty.
func (f *Form) SetInput(key, text string) {
	f.mu.Lock()
	f.inputs[key] = text
	delete(f.errs, key)
	f.mu.Unlock()
	f.session.MarkFormDirty()
}

// SetChecked records a checkbox toggle and marks the form dirty.
func (f *Form) SetChecked(key string, checked bool) {
	f.mu.Lock()
	f.checks[key] = checked
	f.mu.Unlock()
	f.session.MarkFormDirty()
}

// Input returns the current text of a numeric field.
func (f *Form) Input(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[key]
}

// Checked returns the current state of a checkbox field.
func (f *Form) Checked(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[key]
}

// FieldError reports whether the last save attempt flagged the field.
func (f *Form) FieldError(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[key]
}

// Config returns the last confirmed parameter map.
func (f *Form) Config() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// payload builds the save body. Checkboxes are always sent; empty numeric
// fields are omitted; unparseable text flags the field and aborts.
func (f *Form) payload() (map[string]any, bool) {
	payload := make(map[string]any)
	hasError := false
	for _, field := range ControlFields {
		if field.Checkbox {
			payload[field.Key] = f.checks[field.Key]
			continue
		}
		raw := strings.TrimSpace(f.inputs[field.Key])
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			hasError = true
			f.errs[field.Key] = true
			continue
		}
		delete(f.errs, field.Key)
		payload[field.Key] = value
	}
	return payload, hasError
}

// Save validates and submits the form. Validation failure never reaches the
// network; a server failure keeps the dirty flag so the edits survive.
func (f *Form) Save(ctx context.Context) error {
	f.mu.Lock()
	payload, hasError := f.payload()
	f.mu.Unlock()

	if hasError {
		f.notices.Warn("Check the entered values")
		return nil
	}

	confirmed, err := f.api.SaveControl(ctx, payload)
	if err != nil {
		f.log.Error().Err(err).Msg("Failed to save control settings")
		f.notices.Error("Failed to save controller settings")
		return err
	}

	f.mu.Lock()
	if confirmed != nil {
		f.config = confirmed
	}
	f.mu.Unlock()
	f.session.ClearFormDirty()
	f.notices.Success("Controller settings updated")
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	default:
		return false
	}
}

// formatConfigValue renders a config value as input text without trailing
// float noise.
func formatConfigValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
