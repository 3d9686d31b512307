package entity

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/locale"
)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		input string
		want  ir.Value
	}{
		{"14 uhr", ir.String("14:00")},
		{"2pm", ir.String("14:00")},
		{"12am", ir.String("00:00")},
		{"12pm", ir.String("12:00")},
		{"9:05", ir.String("09:05")},
		{"19.30 uhr", ir.String("19:30")},
		{"14h30", ir.String("14:30")},
		{"20h", ir.String("20:00")},
		{"drei uhr", ir.String("03:00")},
		{"25 uhr", ir.String("25 uhr")},
		{"mittag", ir.String("mittag")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTime(tt.input))
		})
	}
}

func TestNormalizeTimeIdempotent(t *testing.T) {
	for _, in := range []string{"14 uhr", "2pm", "12am", "7:45 am"} {
		first := NormalizeTime(in)
		s, ok := first.(ir.String)
		assert.True(t, ok)
		assert.Equal(t, first, NormalizeTime(string(s)), in)
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		input string
		want  ir.Value
	}{
		{"föif", ir.Int(5)},
		{"Fünf", ir.Int(5)},
		{"zwölfi", ir.Int(12)},
		{"cinq", ir.Int(5)},
		{"quattro", ir.Int(4)},
		{"seven", ir.Int(7)},
		{"42", ir.Int(42)},
		{" 7 ", ir.Int(7)},
		{"viele", ir.String("viele")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeNumber(tt.input))
		})
	}
}

func TestNormalizeNumberIdempotent(t *testing.T) {
	for word := range locale.All().Numbers {
		first, ok := NormalizeNumber(word).(ir.Int)
		if !assert.True(t, ok, word) {
			continue
		}
		again := NormalizeNumber(strconv.FormatInt(int64(first), 10))
		assert.Equal(t, first, again, word)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  ir.Value
	}{
		{"heute", ir.String(locale.DateToday)},
		{"morn", ir.String(locale.DateTomorrow)},
		{"Übermorgen", ir.String(locale.DateDayAfterTomorrow)},
		{"geschter", ir.String(locale.DateYesterday)},
		{"avant-hier", ir.String(locale.DateDayBeforeYesterday)},
		{"day after tomorrow", ir.String(locale.DateDayAfterTomorrow)},
		{"24.12.", ir.String("24.12.")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.input))
		})
	}

	// Symbolic tokens pass through unchanged.
	assert.Equal(t, ir.String(locale.DateTomorrow), NormalizeDate(locale.DateTomorrow))
	assert.Equal(t, ir.String(locale.DateDayAfterTomorrow), NormalizeDate(locale.DateDayAfterTomorrow))
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  ir.Value
	}{
		{"CHF 12,50", ir.Float(12.5)},
		{"12.50 chf", ir.Float(12.5)},
		{"1'250.-", ir.Float(1250)},
		{"1.234,50", ir.Float(1234.5)},
		{"1,234.50", ir.Float(1234.5)},
		{"12.5", ir.Float(12.5)},
		{"gratis", ir.String("gratis")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCurrency(tt.input))
		})
	}
}

func TestNormalizeQuantity(t *testing.T) {
	assert.Equal(t, ir.Int(3), NormalizeQuantity("3x"))
	assert.Equal(t, ir.Int(3), NormalizeQuantity("3 x"))
	assert.Equal(t, ir.Int(3), NormalizeQuantity("3"))
	assert.Equal(t, ir.Int(2), NormalizeQuantity("zwöi"))
	assert.Equal(t, ir.String("viele"), NormalizeQuantity("viele"))
}

func TestNormalizeParam(t *testing.T) {
	assert.Equal(t, ir.Int(5), NormalizeParam(ir.ParamNumber, "föif"))
	assert.Equal(t, ir.String("14:00"), NormalizeParam(ir.ParamTime, "14 uhr"))
	assert.Equal(t, ir.String(locale.DateTomorrow), NormalizeParam(ir.ParamDate, "morgen"))
	assert.Equal(t, ir.Bool(true), NormalizeParam(ir.ParamBoolean, "jo"))
	assert.Equal(t, ir.Bool(false), NormalizeParam(ir.ParamBoolean, "non"))
	assert.Equal(t, ir.String("margherita"), NormalizeParam(ir.ParamString, "  margherita "))
	assert.Equal(t, ir.String("x"), NormalizeParam(ir.ParamType("mystery"), " x "))
}
