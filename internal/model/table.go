package model

import "strings"

// ColumnLabel is one raw column header. Multi-level headers carry one element
// per level, outermost first.
type ColumnLabel []string

// Last returns the innermost header level, or "" for an empty label.
func (l ColumnLabel) Last() string {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}

// String joins the header levels with " / " for diagnostics.
func (l ColumnLabel) String() string {
	return strings.Join(l, " / ")
}

// RawTable is one tabular fragment scraped from the source page. It is
// produced by the fetcher and consumed once by the reshaper.
type RawTable struct {
	Index   int           `json:"index"`
	Title   string        `json:"title,omitempty"`
	Columns []ColumnLabel `json:"columns"`
	Rows    [][]any       `json:"rows"`
}

// Cell returns the cell at (row, col), or nil when either index is out of range.
func (t RawTable) Cell(row, col int) any {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}
