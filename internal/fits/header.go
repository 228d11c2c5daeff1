package fits

import (
	"fmt"
	"strconv"
	"strings"
)

// Header maps FITS keywords to their decoded card values
// (int, int64, float64, string or bool).
type Header map[string]any

// Has reports whether the keyword is present
func (h Header) Has(key string) bool {
	_, ok := h[key]
	return ok
}

// String returns the trimmed string value of a keyword. Non-string values
// are formatted.
func (h Header) String(key string) (string, bool) {
	v, ok := h[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	default:
		return formatValue(val), true
	}
}

// Float returns the numeric value of a keyword. Numeric strings are parsed;
// anything else reports ok=false with a non-nil error.
func (h Header) Float(key string) (float64, bool, error) {
	v, ok := h[key]
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, true, fmt.Errorf("keyword %s: %w", key, err)
	}
	return f, true, nil
}

// Format renders a keyword value the way it reads in the header
// (integers without a decimal point).
func (h Header) Format(key string) (string, bool) {
	v, ok := h[key]
	if !ok {
		return "", false
	}
	return formatValue(v), true
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
