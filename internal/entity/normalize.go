package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/locale"
)

var (
	timePattern     = regexp.MustCompile(`^(\d{1,2})(?:[:.h](\d{2}))?\s*(uhr|am|pm|h)?$`)
	wordTimePattern = regexp.MustCompile(`^(\pL+)\s+uhr$`)
	quantityPattern = regexp.MustCompile(`^(\d+)\s*x?$`)
	currencyStrip   = regexp.MustCompile(`[^0-9.,]`)
)

// NormalizeNumber maps a number word or digit string to an Int. Text that
// is neither is returned unchanged as a String.
//
//	"föif" -> 5, "zwölf" -> 12, "7" -> 7, "viele" -> "viele"
func NormalizeNumber(raw string) ir.Value {
	s := strings.ToLower(strings.TrimSpace(raw))
	if n, ok := locale.All().Numbers[s]; ok {
		return ir.Int(n)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	return ir.String(raw)
}

// NormalizeTime converts "H[:MM] [uhr|am|pm|h]" to 24-hour "HH:MM".
// pm adds 12 unless the hour is already 12 or later; 12am is midnight.
// Unparsable or out-of-range input is returned unchanged.
//
//	"14 uhr" -> "14:00", "2pm" -> "14:00", "12am" -> "00:00", "9:05" -> "09:05"
func NormalizeTime(raw string) ir.Value {
	s := strings.ToLower(strings.TrimSpace(raw))

	var hour, minute int
	var suffix string
	if m := timePattern.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		suffix = m[3]
	} else if m := wordTimePattern.FindStringSubmatch(s); m != nil {
		n, ok := locale.All().Numbers[m[1]]
		if !ok {
			return ir.String(raw)
		}
		hour = n
	} else {
		return ir.String(raw)
	}

	switch suffix {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return ir.String(raw)
	}
	return ir.String(fmt.Sprintf("%02d:%02d", hour, minute))
}

// NormalizeDate maps relative date words to symbolic tokens
// (locale.DateToday, locale.DateTomorrow, ...). Anything else, including
// explicit dates like "24.12.", passes through unchanged.
func NormalizeDate(raw string) ir.Value {
	s := strings.ToLower(strings.TrimSpace(raw))
	if d, ok := locale.All().Dates[s]; ok {
		return ir.String(d)
	}
	return ir.String(raw)
}

// NormalizeCurrency strips everything but digits and separators, treats a
// decimal comma as a point and parses the rest as a Float.
//
//	"CHF 12,50" -> 12.5, "1'250.-" -> 1250, "1.234,50" -> 1234.5
func NormalizeCurrency(raw string) ir.Value {
	s := currencyStrip.ReplaceAllString(raw, "")
	s = strings.Trim(s, ".,")

	hasComma := strings.Contains(s, ",")
	hasPoint := strings.Contains(s, ".")
	switch {
	case hasComma && hasPoint:
		// Whichever separator comes last is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ir.String(raw)
	}
	return ir.Float(f)
}

// NormalizeQuantity reads a leading integer before an optional "x"
// ("3x", "3 x", "3"), falling back to NormalizeNumber.
func NormalizeQuantity(raw string) ir.Value {
	s := strings.ToLower(strings.TrimSpace(raw))
	if m := quantityPattern.FindStringSubmatch(s); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return ir.Int(n)
		}
	}
	return NormalizeNumber(raw)
}

var booleanWords = map[string]bool{
	"ja": true, "jo": true, "jawohl": true, "yes": true, "oui": true, "si": true, "sì": true, "true": true,
	"nein": false, "nei": false, "no": false, "non": false, "false": false,
}

// NormalizeBoolean maps yes/no words in every locale to a Bool. Other
// text is returned unchanged.
func NormalizeBoolean(raw string) ir.Value {
	if b, ok := booleanWords[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return ir.Bool(b)
	}
	return ir.String(raw)
}

// NormalizeParam normalizes a captured slot by its declared type.
// string, entity, wildcard and unknown types pass through trimmed.
func NormalizeParam(t ir.ParamType, raw string) ir.Value {
	switch t {
	case ir.ParamNumber:
		return NormalizeQuantity(raw)
	case ir.ParamDate:
		return NormalizeDate(raw)
	case ir.ParamTime:
		return NormalizeTime(raw)
	case ir.ParamBoolean:
		return NormalizeBoolean(raw)
	default:
		return ir.String(strings.TrimSpace(raw))
	}
}
