// Package model defines the shared data types of the PPI pipeline.
package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the canonical wire format for record dates.
const DateLayout = "2006-01-02"

// Record is one long-format observation: a metric's value for a month.
type Record struct {
	Date          time.Time `json:"date"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	IsPreliminary bool      `json:"is_preliminary"`
}

// MonthStart returns the first day of the given month in UTC.
func MonthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// Key identifies a record by (date, metric).
func (r Record) Key() string {
	return r.Date.Format(DateLayout) + "/" + r.Metric
}

// PreliminaryFlag returns the 0/1 storage form of IsPreliminary.
func (r Record) PreliminaryFlag() int16 {
	if r.IsPreliminary {
		return 1
	}
	return 0
}

// Validate checks the record invariants: first-of-month UTC date, non-empty
// metric and a finite value.
func (r Record) Validate() error {
	if r.Date.IsZero() {
		return eris.New("record: zero date")
	}
	if r.Date.Day() != 1 || r.Date.Hour() != 0 || r.Date.Minute() != 0 || r.Date.Second() != 0 || r.Date.Nanosecond() != 0 {
		return eris.Errorf("record: date %s is not the first of a month", r.Date.Format(time.RFC3339))
	}
	if r.Metric == "" {
		return eris.New("record: empty metric")
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return eris.Errorf("record: non-finite value for %s", r.Key())
	}
	return nil
}

// TableCount summarises one source table's contribution to a dataset.
type TableCount struct {
	Name    string    `json:"name"`
	Records int       `json:"records"`
	MinDate time.Time `json:"min_date"`
	MaxDate time.Time `json:"max_date"`
}

// Summary holds reporting statistics for a combined dataset.
type Summary struct {
	Records     int          `json:"records"`
	MinDate     time.Time    `json:"min_date"`
	MaxDate     time.Time    `json:"max_date"`
	Metrics     []string     `json:"metrics"`
	Preliminary int          `json:"preliminary"`
	Duplicates  int          `json:"duplicates"`
	Tables      []TableCount `json:"tables"`
}

// Metadata flattens the summary for the run log.
func (s Summary) Metadata() map[string]any {
	m := map[string]any{
		"records":     s.Records,
		"metrics":     len(s.Metrics),
		"preliminary": s.Preliminary,
		"duplicates":  s.Duplicates,
	}
	if !s.MinDate.IsZero() {
		m["min_date"] = s.MinDate.Format(DateLayout)
		m["max_date"] = s.MaxDate.Format(DateLayout)
	}
	return m
}

// Dataset is the unified, de-duplicated output of all source tables.
type Dataset struct {
	Records []Record `json:"records"`
	Summary Summary  `json:"summary"`
	Issues  []string `json:"issues,omitempty"`
}
