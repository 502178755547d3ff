package transform

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/ppi-cli/internal/model"
)

var (
	yearMarkerRe  = regexp.MustCompile(`^\d{4}$`)
	monthTokenRe  = regexp.MustCompile(`^([A-Za-z]+\.?)`)
	footnoteRefRe = regexp.MustCompile(`\(\s*[A-Za-z0-9]{1,3}\s*\)`)
	headerDateRe  = regexp.MustCompile(`(?:^|\s)([A-Za-z]+\.?)\s*(\d{4})$`)
	spaceRunRe    = regexp.MustCompile(`\s+`)
)

// Accepted column-header date formats.
var headerDateLayouts = []string{"Jan. 2006", "January 2006"}

// RowKind classifies a cell of the month column.
type RowKind int

const (
	RowUnparsed RowKind = iota
	RowYear
	RowMonth
	RowFootnote
)

// RowLabel is the classification of one month-column cell.
type RowLabel struct {
	Kind        RowKind
	Year        int
	Month       time.Month
	Preliminary bool
}

// RowDates is the outcome of resolving a whole month column. Dates holds a
// zero time for rows that carry no data (year markers, footnotes, unparsed).
type RowDates struct {
	Dates       []time.Time
	Preliminary []bool
	Years       []int
	Footnotes   int
	Unparsed    int
}

// DateResolver turns month labels and header text into first-of-month dates.
type DateResolver struct {
	layout Layout
}

// NewDateResolver creates a resolver for the given layout.
func NewDateResolver(l Layout) *DateResolver {
	return &DateResolver{layout: l}
}

// ClassifyRow classifies a single month-column cell.
func (r *DateResolver) ClassifyRow(label string) RowLabel {
	label = strings.TrimSpace(label)
	if label == "" {
		return RowLabel{Kind: RowUnparsed}
	}
	if yearMarkerRe.MatchString(label) {
		y, _ := strconv.Atoi(label)
		return RowLabel{Kind: RowYear, Year: y}
	}
	for _, prefix := range r.layout.FootnotePrefixes {
		if prefix != "" && strings.HasPrefix(strings.ToLower(label), strings.ToLower(prefix)) {
			return RowLabel{Kind: RowFootnote}
		}
	}

	m := monthTokenRe.FindStringSubmatch(label)
	if m == nil {
		return RowLabel{Kind: RowUnparsed}
	}
	month, ok := r.layout.MonthNumber(m[1])
	if !ok {
		return RowLabel{Kind: RowUnparsed}
	}
	return RowLabel{
		Kind:        RowMonth,
		Month:       month,
		Preliminary: hasMarker(label[len(m[1]):], r.layout.PreliminaryMarkers),
	}
}

// ResolveRows assigns a date to every row of a month column. Year markers are
// recorded in encounter order; the anchor year is the first marker, or the
// marker in effect for the row when FollowYearMarkers is set.
func (r *DateResolver) ResolveRows(labels []string) (*RowDates, error) {
	out := &RowDates{
		Dates:       make([]time.Time, len(labels)),
		Preliminary: make([]bool, len(labels)),
	}

	classified := make([]RowLabel, len(labels))
	months := 0
	for i, label := range labels {
		rl := r.ClassifyRow(label)
		classified[i] = rl
		switch rl.Kind {
		case RowYear:
			out.Years = append(out.Years, rl.Year)
		case RowFootnote:
			out.Footnotes++
		case RowUnparsed:
			out.Unparsed++
		case RowMonth:
			months++
		}
	}

	if months == 0 {
		return out, nil
	}
	if len(out.Years) == 0 {
		return nil, formatErrorf("month column has %d month rows but no year marker rows", months)
	}

	anchor := out.Years[0]
	current := 0
	for i, rl := range classified {
		switch rl.Kind {
		case RowYear:
			current = rl.Year
		case RowMonth:
			year := anchor
			if r.layout.FollowYearMarkers && current != 0 {
				year = current
			}
			out.Dates[i] = model.MonthStart(r.layout.yearFor(year, rl.Month), rl.Month)
			out.Preliminary[i] = rl.Preliminary
		}
	}
	return out, nil
}

// ParseHeaderDate parses column-header date text such as "Oct. 2021(2)" or
// "October 2021". Parenthetical footnote references are ignored. Text that
// matches neither format is a format error: it means the layout changed.
func (r *DateResolver) ParseHeaderDate(text string) (time.Time, error) {
	clean := footnoteRefRe.ReplaceAllString(text, " ")
	clean = strings.TrimSpace(spaceRunRe.ReplaceAllString(clean, " "))

	for _, layout := range headerDateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return model.MonthStart(t.Year(), t.Month()), nil
		}
	}

	// "Sept. 2021", and dates trailing other header text such as
	// "Unadjusted index Oct. 2021".
	if m := headerDateRe.FindStringSubmatch(clean); m != nil {
		if month, ok := r.layout.MonthNumber(m[1]); ok {
			year, _ := strconv.Atoi(m[2])
			return model.MonthStart(year, month), nil
		}
	}

	return time.Time{}, formatErrorf("unparseable header date %q", text)
}

// hasMarker reports whether s contains any of the given footnote markers.
func hasMarker(s string, markers []string) bool {
	upper := strings.ToUpper(s)
	for _, m := range markers {
		if m != "" && strings.Contains(upper, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}
