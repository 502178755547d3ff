package transform

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayoutYAML []byte

// Layout describes how the source tables are laid out: the month-name table,
// the year-boundary policy and the marker conventions. It is data, not code,
// so source format drift can be absorbed by editing a YAML file.
type Layout struct {
	MonthColumn        string         `yaml:"month_column"`
	LabelColumn        string         `yaml:"label_column"`
	IndexKeyword       string         `yaml:"index_keyword"`
	BoundaryMonth      int            `yaml:"boundary_month"`
	FollowYearMarkers  bool           `yaml:"follow_year_markers"`
	FootnotePrefixes   []string       `yaml:"footnote_prefixes"`
	PreliminaryMarkers []string       `yaml:"preliminary_markers"`
	Tables             []string       `yaml:"tables"`
	Months             map[string]int `yaml:"months"`
}

// DefaultLayout returns the embedded layout for the BLS PPI release tables.
func DefaultLayout() Layout {
	var l Layout
	if err := yaml.Unmarshal(defaultLayoutYAML, &l); err != nil {
		panic(fmt.Sprintf("transform: embedded layout: %v", err))
	}
	return l.normalized()
}

// LoadLayout reads a layout file and overlays it on the default layout.
// Month entries in the file are merged into the default month table.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, eris.Wrapf(err, "transform: read layout %s", path)
	}

	l := DefaultLayout()
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, eris.Wrapf(err, "transform: parse layout %s", path)
	}
	l = l.normalized()
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks that the layout is usable.
func (l Layout) Validate() error {
	if l.MonthColumn == "" {
		return eris.New("transform: layout: month_column is required")
	}
	if l.BoundaryMonth < 1 || l.BoundaryMonth > 12 {
		return eris.Errorf("transform: layout: boundary_month %d out of range 1-12", l.BoundaryMonth)
	}
	if len(l.Months) == 0 {
		return eris.New("transform: layout: empty month table")
	}
	for name, n := range l.Months {
		if n < 1 || n > 12 {
			return eris.Errorf("transform: layout: month %q maps to %d", name, n)
		}
	}
	return nil
}

// normalized lowercases month keys and strips trailing periods so lookups
// are insensitive to "Jan." vs "jan".
func (l Layout) normalized() Layout {
	months := make(map[string]int, len(l.Months))
	for k, v := range l.Months {
		months[monthKey(k)] = v
	}
	l.Months = months
	l.MonthColumn = NormalizeColumn(l.MonthColumn)
	l.LabelColumn = NormalizeColumn(l.LabelColumn)
	l.IndexKeyword = strings.ToLower(strings.TrimSpace(l.IndexKeyword))
	return l
}

func monthKey(s string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}

// MonthNumber maps a month token such as "Sept." or "December" to its month.
func (l Layout) MonthNumber(token string) (time.Month, bool) {
	n, ok := l.Months[monthKey(token)]
	if !ok {
		return 0, false
	}
	return time.Month(n), true
}

// TableName returns the canonical name of the i-th source table.
func (l Layout) TableName(i int) string {
	if i >= 0 && i < len(l.Tables) {
		return l.Tables[i]
	}
	return fmt.Sprintf("table_%d", i+1)
}

// yearFor applies the boundary policy: months at or after the boundary belong
// to the anchor year, earlier months to the following year.
func (l Layout) yearFor(anchor int, month time.Month) int {
	if int(month) >= l.BoundaryMonth {
		return anchor
	}
	return anchor + 1
}
