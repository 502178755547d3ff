package transform

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
)

// Shape is the layout strategy detected for a table.
type Shape int

const (
	// ShapeRowLabel tables carry dates in a month column; values are melted
	// from every other column.
	ShapeRowLabel Shape = iota + 1
	// ShapeColumnHeader tables carry the date in a column header; metrics
	// come from a label column.
	ShapeColumnHeader
)

// String returns the shape name used in logs.
func (s Shape) String() string {
	switch s {
	case ShapeRowLabel:
		return "row_label"
	case ShapeColumnHeader:
		return "column_header"
	default:
		return "unknown"
	}
}

// Stats counts what happened to a table's rows and cells.
type Stats struct {
	Rows          int `json:"rows"`
	YearMarkers   int `json:"year_markers"`
	FootnoteRows  int `json:"footnote_rows"`
	UnparsedRows  int `json:"unparsed_rows"`
	DroppedValues int `json:"dropped_values"`
	Records       int `json:"records"`
}

// Result is the long-format output of one table.
type Result struct {
	Table   string
	Shape   Shape
	Records []model.Record
	Stats   Stats
}

// Reshaper converts wide source tables to long-format records.
type Reshaper struct {
	layout Layout
	dates  *DateResolver
	values *ValueExtractor
}

// NewReshaper creates a reshaper for the given layout.
func NewReshaper(l Layout) *Reshaper {
	return &Reshaper{
		layout: l,
		dates:  NewDateResolver(l),
		values: NewValueExtractor(l),
	}
}

// Reshape normalizes the table's columns, detects its shape and emits one
// record per surviving (date, metric, value). Format problems are returned
// as *FormatError tagged with the table name.
func (r *Reshaper) Reshape(t model.RawTable) (*Result, error) {
	name := r.layout.TableName(t.Index)
	log := zap.L().With(zap.String("component", "transform.reshape"), zap.String("table", name))

	res, err := r.reshape(name, t)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Table == "" {
			fe.Table = name
		}
		return nil, err
	}

	log.Info("table reshaped",
		zap.Stringer("shape", res.Shape),
		zap.Int("rows", res.Stats.Rows),
		zap.Int("records", res.Stats.Records),
		zap.Int("year_markers", res.Stats.YearMarkers),
		zap.Int("footnote_rows", res.Stats.FootnoteRows),
		zap.Int("unparsed_rows", res.Stats.UnparsedRows),
		zap.Int("dropped_values", res.Stats.DroppedValues),
	)
	return res, nil
}

func (r *Reshaper) reshape(name string, t model.RawTable) (*Result, error) {
	if len(t.Columns) == 0 {
		return nil, formatErrorf("table has no columns")
	}
	cols, err := NormalizeColumns(t.Columns)
	if err != nil {
		return nil, err
	}

	res := &Result{Table: name}
	res.Stats.Rows = len(t.Rows)

	if idx := indexOf(cols, r.layout.MonthColumn); idx >= 0 {
		res.Shape = ShapeRowLabel
		err = r.meltRows(t, cols, idx, res)
	} else {
		res.Shape = ShapeColumnHeader
		err = r.pivotHeader(t, cols, res)
	}
	if err != nil {
		return nil, err
	}

	res.Stats.Records = len(res.Records)
	return res, nil
}

// meltRows handles row-label tables: one record per (row, value column).
func (r *Reshaper) meltRows(t model.RawTable, cols []string, monthIdx int, res *Result) error {
	labels := make([]string, len(t.Rows))
	for i := range t.Rows {
		labels[i] = cellString(t.Cell(i, monthIdx))
	}

	rd, err := r.dates.ResolveRows(labels)
	if err != nil {
		return err
	}
	res.Stats.YearMarkers = len(rd.Years)
	res.Stats.FootnoteRows = rd.Footnotes
	res.Stats.UnparsedRows = rd.Unparsed

	for i := range t.Rows {
		date := rd.Dates[i]
		if date.IsZero() {
			continue
		}
		for j, metric := range cols {
			if j == monthIdx {
				continue
			}
			r.emit(res, date, metric, t.Cell(i, j), rd.Preliminary[i])
		}
	}
	return nil
}

// pivotHeader handles column-header tables: the date comes from the selected
// header, the metric from each row's label.
func (r *Reshaper) pivotHeader(t model.RawTable, cols []string, res *Result) error {
	labelIdx := indexOf(cols, r.layout.LabelColumn)
	if labelIdx < 0 {
		labelIdx = 0
	}
	valueIdx := r.selectValueColumn(t.Columns, labelIdx)
	if valueIdx < 0 {
		return formatErrorf("no value column besides label column %q", cols[labelIdx])
	}

	date, err := r.headerDate(t.Columns[valueIdx])
	if err != nil {
		return err
	}

	for i := range t.Rows {
		label := strings.TrimSpace(cellString(t.Cell(i, labelIdx)))
		if r.isFootnote(label) {
			res.Stats.FootnoteRows++
			continue
		}
		metric := NormalizeColumn(label)
		if metric == "" {
			res.Stats.UnparsedRows++
			continue
		}
		r.emit(res, date, metric, t.Cell(i, valueIdx), false)
	}
	return nil
}

// selectValueColumn picks the rightmost column whose header mentions the
// index keyword, falling back to the rightmost non-label column.
func (r *Reshaper) selectValueColumn(labels []model.ColumnLabel, labelIdx int) int {
	fallback := -1
	for i := len(labels) - 1; i >= 0; i-- {
		if i == labelIdx {
			continue
		}
		if fallback < 0 {
			fallback = i
		}
		if r.layout.IndexKeyword != "" && strings.Contains(strings.ToLower(labels[i].String()), r.layout.IndexKeyword) {
			return i
		}
	}
	return fallback
}

// headerDate tries the header levels innermost first.
func (r *Reshaper) headerDate(label model.ColumnLabel) (time.Time, error) {
	var firstErr error
	for i := len(label) - 1; i >= 0; i-- {
		d, err := r.dates.ParseHeaderDate(label[i])
		if err == nil {
			return d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = formatErrorf("empty header for value column")
	}
	return time.Time{}, firstErr
}

func (r *Reshaper) emit(res *Result, date time.Time, metric string, cell any, rowPrelim bool) {
	v, prelim, ok := r.values.Extract(cell)
	if !ok {
		res.Stats.DroppedValues++
		return
	}
	rec := model.Record{
		Date:          date,
		Metric:        metric,
		Value:         v,
		IsPreliminary: prelim || rowPrelim,
	}
	if rec.Validate() != nil {
		res.Stats.DroppedValues++
		return
	}
	res.Records = append(res.Records, rec)
}

func (r *Reshaper) isFootnote(label string) bool {
	for _, prefix := range r.layout.FootnotePrefixes {
		if prefix != "" && strings.HasPrefix(strings.ToLower(label), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func indexOf(cols []string, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
