// Package transform reshapes wide BLS price-index tables into long-format records.
package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/ppi-cli/internal/model"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeColumn maps a raw column label to a snake_case identifier.
// Multi-level labels are joined with "_" first.
// ("Final demand", "Total") → "final_demand_total", "Stage 4 (1)" → "stage_4_1".
func NormalizeColumn(levels ...string) string {
	s := strings.ToLower(strings.Join(levels, "_"))
	s = nonAlnumRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeColumns normalizes every label of a table header. Labels that
// normalize to "" get a positional name; two distinct labels that collide
// are a format error rather than a silent overwrite.
func NormalizeColumns(labels []model.ColumnLabel) ([]string, error) {
	out := make([]string, len(labels))
	seen := make(map[string]int, len(labels))
	for i, label := range labels {
		name := normalizeLabel(label)
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		if prev, ok := seen[name]; ok {
			return nil, formatErrorf("columns %q and %q both normalize to %q",
				labels[prev].String(), label.String(), name)
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

// normalizeLabel collapses repeated header levels before normalizing, so a
// label spanning both header rows ("Month", "Month") becomes "month".
func normalizeLabel(label model.ColumnLabel) string {
	levels := make([]string, 0, len(label))
	for _, lvl := range label {
		if len(levels) > 0 && NormalizeColumn(levels[len(levels)-1]) == NormalizeColumn(lvl) {
			continue
		}
		levels = append(levels, lvl)
	}
	return NormalizeColumn(levels...)
}
