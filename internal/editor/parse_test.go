package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmcare/ventpanel/internal/model"
)

func TestParseWindRanges(t *testing.T) {
	t.Run("drops malformed segments", func(t *testing.T) {
		got := ParseWindRanges("300-60; abc; 180-270")
		assert.Equal(t, []model.WindRange{{300, 60}, {180, 270}}, got)
	})

	t.Run("tolerates whitespace and empty segments", func(t *testing.T) {
		got := ParseWindRanges("  10 - 20 ;; 30-40 ; ")
		assert.Equal(t, []model.WindRange{{10, 20}, {30, 40}}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ParseWindRanges(""))
		assert.Nil(t, ParseWindRanges(" ; ; "))
	})

	t.Run("missing half dropped", func(t *testing.T) {
		assert.Nil(t, ParseWindRanges("300-"))
		assert.Nil(t, ParseWindRanges("300"))
	})
}

func TestFormatWindRanges_RoundTrips(t *testing.T) {
	ranges := []model.WindRange{{300, 60}, {180.5, 270}}
	text := FormatWindRanges(ranges)
	assert.Equal(t, "300-60; 180.5-270", text)
	assert.Equal(t, ranges, ParseWindRanges(text))
}

func TestParseVentIDs(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, ParseVentIDs("1, 2,3"))
	assert.Equal(t, []int{4}, ParseVentIDs("4, x, "))
	assert.Nil(t, ParseVentIDs(""))
}

func TestOptionalFloat(t *testing.T) {
	t.Run("empty means unset", func(t *testing.T) {
		v, err := OptionalFloat("  ")
		assert.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("parses value", func(t *testing.T) {
		v, err := OptionalFloat("2.5")
		assert.NoError(t, err)
		if assert.NotNil(t, v) {
			assert.Equal(t, 2.5, *v)
		}
	})

	t.Run("typo is an error, not a clear", func(t *testing.T) {
		v, err := OptionalFloat("2,5")
		assert.Error(t, err)
		assert.Nil(t, v)
	})
}

func TestOptionalInt(t *testing.T) {
	v, err := OptionalInt("120")
	assert.NoError(t, err)
	if assert.NotNil(t, v) {
		assert.Equal(t, 120, *v)
	}

	v, err = OptionalInt("")
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = OptionalInt("12.5")
	assert.Error(t, err)
}
