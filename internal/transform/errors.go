package transform

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrFormatDrift is the sentinel for source layout changes that make a table
// impossible to reshape.
var ErrFormatDrift = eris.New("source format drift")

// FormatError reports a structural problem with one source table.
type FormatError struct {
	Table  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Table == "" {
		return "format drift: " + e.Reason
	}
	return fmt.Sprintf("format drift in table %s: %s", e.Table, e.Reason)
}

// Unwrap lets errors.Is match ErrFormatDrift.
func (e *FormatError) Unwrap() error {
	return ErrFormatDrift
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
