package transform

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumberRe = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)`)

// ValueExtractor parses raw cells into a float value and a preliminary flag.
type ValueExtractor struct {
	markers []string
}

// NewValueExtractor creates an extractor using the layout's preliminary markers.
func NewValueExtractor(l Layout) *ValueExtractor {
	return &ValueExtractor{markers: l.PreliminaryMarkers}
}

// Extract parses a cell. Every cell goes through its string form first, so
// numeric and textual cells follow the same path. ok is false when the cell
// has no leading number or the number is not finite.
func (v *ValueExtractor) Extract(cell any) (value float64, preliminary bool, ok bool) {
	s := strings.TrimSpace(cellString(cell))
	preliminary = hasMarker(s, v.markers)

	s = strings.ReplaceAll(s, ",", "")
	s = strings.Replace(s, "−", "-", 1)

	num := leadingNumberRe.FindString(s)
	if num == "" {
		return 0, preliminary, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, preliminary, false
	}
	return f, preliminary, true
}

// cellString renders a cell as text. Floats are formatted without exponent
// so the leading-number match sees every digit.
func cellString(cell any) string {
	switch c := cell.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}
