package dashboard

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
	"github.com/farmcare/ventpanel/internal/reconcile"
)

// SensorMeta describes how one sensor reading is labeled and formatted.
type SensorMeta struct {
	Label  string
	Unit   string
	Digits int
}

// sensorMeta is keyed by the controller's sensor names; unknown sensors
// still render, with the raw key as label.
var sensorMeta = map[string]SensorMeta{
	"internal_temp":     {Label: "Internal temperature", Unit: "C", Digits: 1},
	"external_temp":     {Label: "External temperature", Unit: "C", Digits: 1},
	"internal_hum":      {Label: "Internal humidity", Unit: "%", Digits: 0},
	"external_hum":      {Label: "External humidity", Unit: "%", Digits: 0},
	"internal_co2":      {Label: "CO2", Unit: "ppm", Digits: 0},
	"external_pressure": {Label: "Pressure", Unit: "hPa", Digits: 1},
	"wind_speed":        {Label: "Wind average", Unit: "m/s", Digits: 1},
	"wind_gust":         {Label: "Wind gust", Unit: "m/s", Digits: 1},
	"wind_direction":    {Label: "Wind direction", Unit: "", Digits: 0},
	"rain":              {Label: "Rainfall", Unit: "mm", Digits: 1},
}

// sensorOrder fixes the card layout; sensors outside the list follow sorted
// by key.
var sensorOrder = []string{
	"internal_temp", "external_temp", "internal_hum", "external_hum",
	"internal_co2", "external_pressure", "wind_speed", "wind_gust",
	"wind_direction", "rain",
}

// SensorCard is one rendered sensor reading.
type SensorCard struct {
	Key     string
	Label   string
	Display string
}

// VentRow is one rendered vent slider row.
type VentRow struct {
	ID       int
	Name     string
	Target   int
	Actual   int
	Disabled bool
}

// GroupRow is one rendered group slider row.
type GroupRow struct {
	ID       string
	Name     string
	Target   int
	Actual   int
	Disabled bool
}

// AllRow is the whole-installation slider row.
type AllRow struct {
	Target   int
	Actual   int
	Disabled bool
}

// ConfigCard is one entry of the read-only config summary.
type ConfigCard struct {
	Key     string
	Label   string
	Display string
}

// FormatValue renders a possibly missing reading; missing renders as "--".
func FormatValue(value *float64, digits int) string {
	if value == nil {
		return "--"
	}
	return strconv.FormatFloat(*value, 'f', digits, 64)
}

// FormatWithUnit appends the unit unless the value is missing.
func FormatWithUnit(value *float64, unit string, digits int) string {
	formatted := FormatValue(value, digits)
	if formatted == "--" || unit == "" {
		return formatted
	}
	return formatted + " " + unit
}

// SensorCards renders all sensor readings in layout order.
func SensorCards(sensors map[string]*float64) []SensorCard {
	cards := make([]SensorCard, 0, len(sensors))
	seen := make(map[string]bool, len(sensors))
	for _, key := range sensorOrder {
		value, ok := sensors[key]
		if !ok {
			continue
		}
		seen[key] = true
		meta := sensorMeta[key]
		cards = append(cards, SensorCard{
			Key:     key,
			Label:   meta.Label,
			Display: FormatWithUnit(value, meta.Unit, meta.Digits),
		})
	}
	var extra []string
	for key := range sensors {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		cards = append(cards, SensorCard{
			Key:     key,
			Label:   key,
			Display: FormatValue(sensors[key], 1),
		})
	}
	return cards
}

// VentRows renders the per-vent sliders. Rows are disabled outside manual
// mode and for unavailable vents.
func VentRows(st *controller.State) []VentRow {
	if st == nil {
		return nil
	}
	rows := make([]VentRow, 0, len(st.Vents))
	for _, v := range st.Vents {
		d := reconcile.Vent(v, st.Mode)
		rows = append(rows, VentRow{
			ID:       v.ID,
			Name:     v.Name,
			Target:   d.Target,
			Actual:   d.Actual,
			Disabled: st.Mode != model.ModeManual || !v.Available,
		})
	}
	return rows
}

// GroupRows renders the per-group sliders.
func GroupRows(st *controller.State) []GroupRow {
	if st == nil {
		return nil
	}
	rows := make([]GroupRow, 0, len(st.Groups))
	for _, g := range st.Groups {
		d := reconcile.Group(g, st.Vents, st.Mode)
		rows = append(rows, GroupRow{
			ID:       g.ID,
			Name:     g.Name,
			Target:   d.Target,
			Actual:   d.Actual,
			Disabled: st.Mode != model.ModeManual,
		})
	}
	return rows
}

// AllVents renders the whole-installation slider.
func AllVents(st *controller.State) AllRow {
	if st == nil {
		return AllRow{Disabled: true}
	}
	d := reconcile.Installation(st.Vents, st.Mode)
	return AllRow{
		Target:   d.Target,
		Actual:   d.Actual,
		Disabled: st.Mode != model.ModeManual,
	}
}

// configSummaryKeys picks which parameters the read-only summary shows.
var configSummaryKeys = []string{
	"target_temp_c",
	"humidity_thr",
	"min_open_hum_percent",
	"wind_risk_ms",
	"wind_crit_ms",
	"risk_open_limit_percent",
	"rain_threshold",
	"allow_humidity_override",
}

// ConfigSummary renders the config cards. Keys missing from the snapshot
// are skipped rather than shown empty.
func ConfigSummary(config map[string]any) []ConfigCard {
	cards := make([]ConfigCard, 0, len(configSummaryKeys))
	for _, key := range configSummaryKeys {
		value, ok := config[key]
		if !ok {
			continue
		}
		field := fieldSpec(key)
		card := ConfigCard{Key: key, Label: key}
		if field != nil {
			card.Label = field.Label
		}
		if field != nil && field.Checkbox {
			if truthy(value) {
				card.Display = "YES"
			} else {
				card.Display = "NO"
			}
		} else {
			digits := 1
			unit := ""
			if field != nil {
				digits = field.Decimals
				unit = field.Unit
			}
			card.Display = FormatWithUnit(asFloat(value), unit, digits)
		}
		cards = append(cards, card)
	}
	return cards
}

// HistoryLine renders one sensor-history sample for the log view.
func HistoryLine(e controller.HistoryEntry) string {
	return fmt.Sprintf("%s  %s = %s",
		e.TS.Local().Format("2006-01-02 15:04:05"), e.Name, FormatValue(e.Value, 2))
}

func fieldSpec(key string) *FieldSpec {
	for i := range ControlFields {
		if ControlFields[i].Key == key {
			return &ControlFields[i]
		}
	}
	return nil
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
