package editor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/farmcare/ventpanel/internal/model"
)

// ParseWindRanges parses the free-text wind sector field. The format is
// semicolon-separated "start-end" degree pairs, e.g. "300-60; 180-270".
// Malformed segments are dropped, not fatal: the operator sees the ranges
// that did parse and can fix the rest.
func ParseWindRanges(text string) []model.WindRange {
	var ranges []model.WindRange
	for _, part := range strings.Split(text, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, "-", 2)
		if len(fields) != 2 {
			continue
		}
		start, err1 := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		end, err2 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err1 != nil || err2 != nil || math.IsNaN(start) || math.IsNaN(end) {
			continue
		}
		ranges = append(ranges, model.WindRange{start, end})
	}
	return ranges
}

// FormatWindRanges is the inverse of ParseWindRanges for pre-filling the field.
func FormatWindRanges(ranges []model.WindRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, fmt.Sprintf("%s-%s", trimFloat(r[0]), trimFloat(r[1])))
	}
	return strings.Join(parts, "; ")
}

// ParseVentIDs parses a comma-separated id list. Malformed entries are
// dropped like wind ranges.
func ParseVentIDs(text string) []int {
	var ids []int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// OptionalFloat parses a numeric field where empty means unset. A non-empty
// unparseable value is an error so a typo cannot silently clear a tunable.
func OptionalFloat(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("not a number: %q", text)
	}
	return &v, nil
}

// OptionalInt is OptionalFloat for integer fields.
func OptionalInt(text string) (*int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", text)
	}
	return &v, nil
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
