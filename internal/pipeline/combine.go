// Package pipeline runs the PPI scrape: fetch, reshape, combine and load.
package pipeline

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
	"github.com/sells-group/ppi-cli/internal/transform"
)

// Combine concatenates the per-table results, in the order given, into one
// dataset. A (date, metric) pair seen in an earlier table is replaced in
// place by the later table's record and counted as a duplicate.
// Consistency problems are reported in Dataset.Issues, never as errors.
func Combine(results []*transform.Result) *model.Dataset {
	log := zap.L().With(zap.String("component", "pipeline.combine"))

	ds := &model.Dataset{}
	pos := make(map[string]int)
	var prevStart time.Time
	var prevName string

	for i, res := range results {
		if res == nil {
			continue
		}
		name := res.Table
		if name == "" {
			name = fmt.Sprintf("table_%d", i+1)
		}

		tc := model.TableCount{Name: name, Records: len(res.Records)}
		for _, rec := range res.Records {
			if tc.MinDate.IsZero() || rec.Date.Before(tc.MinDate) {
				tc.MinDate = rec.Date
			}
			if rec.Date.After(tc.MaxDate) {
				tc.MaxDate = rec.Date
			}

			key := rec.Key()
			if j, ok := pos[key]; ok {
				ds.Records[j] = rec
				ds.Summary.Duplicates++
				continue
			}
			pos[key] = len(ds.Records)
			ds.Records = append(ds.Records, rec)
		}
		ds.Summary.Tables = append(ds.Summary.Tables, tc)

		if tc.Records == 0 {
			ds.Issues = append(ds.Issues, fmt.Sprintf("table %s produced no records", name))
			continue
		}
		if !prevStart.IsZero() && tc.MinDate.Before(prevStart) {
			ds.Issues = append(ds.Issues, fmt.Sprintf("table %s starts at %s, before table %s (%s)",
				name, tc.MinDate.Format(model.DateLayout), prevName, prevStart.Format(model.DateLayout)))
		}
		prevStart, prevName = tc.MinDate, name
	}

	summarize(ds)
	if len(ds.Summary.Metrics) == 0 {
		ds.Issues = append(ds.Issues, "dataset has no metrics")
	}

	for _, issue := range ds.Issues {
		log.Warn("dataset issue", zap.String("issue", issue))
	}
	if ds.Summary.Duplicates > 0 {
		log.Info("duplicate records replaced", zap.Int("duplicates", ds.Summary.Duplicates))
	}
	return ds
}

// DatasetFromRecords wraps records that did not come from the reshaper,
// such as a CSV import, in a dataset with the same summary and dedup rules.
func DatasetFromRecords(name string, records []model.Record) *model.Dataset {
	return Combine([]*transform.Result{{Table: name, Records: records}})
}

func summarize(ds *model.Dataset) {
	s := &ds.Summary
	s.Records = len(ds.Records)

	metrics := make(map[string]struct{})
	for _, rec := range ds.Records {
		metrics[rec.Metric] = struct{}{}
		if rec.IsPreliminary {
			s.Preliminary++
		}
		if s.MinDate.IsZero() || rec.Date.Before(s.MinDate) {
			s.MinDate = rec.Date
		}
		if rec.Date.After(s.MaxDate) {
			s.MaxDate = rec.Date
		}
	}

	s.Metrics = make([]string, 0, len(metrics))
	for m := range metrics {
		s.Metrics = append(s.Metrics, m)
	}
	slices.Sort(s.Metrics)
}
