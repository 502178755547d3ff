// Package chart summarizes supply-chain price pressure by production stage
// and renders it as PNG and HTML.
package chart

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/ppi-cli/internal/model"
)

// Stages is the number of production stages in the stage-of-production table.
const Stages = 4

// Pressure is the price-pressure level of a stage.
type Pressure string

const (
	PressureHigh   Pressure = "High"
	PressureMedium Pressure = "Medium"
	PressureLow    Pressure = "Low"
)

// Thresholds are the year-over-year percentages at which pressure is rated.
type Thresholds struct {
	High   float64 `mapstructure:"high_threshold" yaml:"high_threshold"`
	Medium float64 `mapstructure:"medium_threshold" yaml:"medium_threshold"`
}

// DefaultThresholds rates 5% YoY and above High, 2% and above Medium.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 5, Medium: 2}
}

// Level rates a YoY percentage. A missing value rates Low.
func (t Thresholds) Level(yoyPct *float64) Pressure {
	switch {
	case yoyPct == nil:
		return PressureLow
	case *yoyPct >= t.High:
		return PressureHigh
	case *yoyPct >= t.Medium:
		return PressureMedium
	default:
		return PressureLow
	}
}

// StageSummary is the latest reading for one production stage. Percentages
// are nil when the store could not compute the change.
type StageSummary struct {
	Stage    int       `json:"stage"`
	Label    string    `json:"label"`
	Metric   string    `json:"metric"`
	Month    time.Time `json:"month"`
	Value    float64   `json:"value"`
	MoMPct   *float64  `json:"mom_pct,omitempty"`
	YoYPct   *float64  `json:"yoy_pct,omitempty"`
	Pressure Pressure  `json:"pressure"`
}

// StageLabel returns the display name of stage n.
func StageLabel(n int) string {
	return cases.Title(language.English).String(fmt.Sprintf("stage %d", n))
}

// StageSummaries picks, for each of the four stages, the first metric
// (alphabetically) named stage_<n> or stage_<n>_..., and summarizes its
// latest rollup month. Stages without rollup rows are omitted.
func StageSummaries(rows []model.RollupRow, th Thresholds) []StageSummary {
	byMetric := make(map[string]model.RollupRow)
	for _, r := range rows {
		cur, ok := byMetric[r.Metric]
		if !ok || r.Month.After(cur.Month) {
			byMetric[r.Metric] = r
		}
	}

	metrics := make([]string, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var out []StageSummary
	for n := 1; n <= Stages; n++ {
		metric, ok := stageMetric(metrics, n)
		if !ok {
			continue
		}
		latest := byMetric[metric]
		s := StageSummary{
			Stage:  n,
			Label:  StageLabel(n),
			Metric: metric,
			Month:  latest.Month,
			Value:  latest.ValueAvg,
			MoMPct: percent(latest.MoMChange),
			YoYPct: percent(latest.YoYChange),
		}
		s.Pressure = th.Level(s.YoYPct)
		out = append(out, s)
	}
	return out
}

func stageMetric(sorted []string, n int) (string, bool) {
	prefix := fmt.Sprintf("stage_%d", n)
	for _, m := range sorted {
		if m == prefix || strings.HasPrefix(m, prefix+"_") {
			return m, true
		}
	}
	return "", false
}

func percent(ratio *float64) *float64 {
	if ratio == nil {
		return nil
	}
	v := *ratio * 100
	return &v
}
