package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/vox/internal/ir"
)

// timeLayout keeps nanoseconds so stored times round-trip exactly. The
// fixed width makes text order chronological, which PruneMatches relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalParams converts match params to canonical JSON TEXT for storage.
func marshalParams(params ir.Object) (string, error) {
	if params == nil {
		params = ir.Object{}
	}
	data, err := ir.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalParams parses canonical JSON TEXT to an Object. Integral
// numbers come back as ir.Int.
func unmarshalParams(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return obj, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
