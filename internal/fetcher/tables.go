package fetcher

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/ppi-cli/internal/model"
)

// metaCharsetRe finds a charset declaration in the first bytes of a page.
var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_\-:.]+)`)

// ParseTables extracts every <table> on the page that has body rows.
// Header rows come from <thead>, or from leading rows made only of <th>
// cells. colspan and rowspan are expanded, so a column under a spanning
// header gets one label level per header row, outermost first.
// contentType may be empty; a <meta charset> is honored when it is.
func ParseTables(r io.Reader, contentType string) ([]model.RawTable, error) {
	body, err := decodeBody(r, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse html")
	}

	var tables []model.RawTable
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		t, ok := parseTable(sel)
		if !ok {
			zap.L().Debug("fetcher: skipping table without body rows", zap.Int("position", i))
			return
		}
		t.Index = len(tables)
		tables = append(tables, t)
	})
	return tables, nil
}

func parseTable(sel *goquery.Selection) (model.RawTable, bool) {
	var header, body []*goquery.Selection
	sel.ChildrenFiltered("thead").ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		header = append(header, tr)
	})
	sel.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		body = append(body, tr)
	})
	if len(header) == 0 {
		for len(body) > 0 && isHeaderRow(body[0]) {
			header = append(header, body[0])
			body = body[1:]
		}
	}
	if len(body) == 0 {
		return model.RawTable{}, false
	}

	headGrid := expandRows(header)
	bodyGrid := expandRows(body)

	width := 0
	for _, row := range append(headGrid, bodyGrid...) {
		width = max(width, len(row))
	}

	t := model.RawTable{
		Title:   cleanText(sel.ChildrenFiltered("caption").Text()),
		Columns: make([]model.ColumnLabel, width),
		Rows:    make([][]any, 0, len(bodyGrid)),
	}
	for c := range width {
		var label model.ColumnLabel
		for _, row := range headGrid {
			if c < len(row) && row[c] != "" {
				label = append(label, row[c])
			}
		}
		t.Columns[c] = label
	}
	for _, row := range bodyGrid {
		cells := make([]any, width)
		for c, text := range row {
			if text != "" {
				cells[c] = text
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, true
}

func isHeaderRow(tr *goquery.Selection) bool {
	cells := tr.ChildrenFiltered("th, td")
	return cells.Length() > 0 && cells.Filter("td").Length() == 0
}

// pendingCell is a rowspan cell still covering rows below its origin.
type pendingCell struct {
	text string
	left int
}

// expandRows lays the rows out on a grid, repeating spanned cells into every
// position they cover.
func expandRows(rows []*goquery.Selection) [][]string {
	grid := make([][]string, len(rows))
	carry := make(map[int]pendingCell)

	for r, tr := range rows {
		var out []string
		col := 0
		fill := func() {
			for {
				p, ok := carry[col]
				if !ok {
					return
				}
				out = append(out, p.text)
				if p.left <= 1 {
					delete(carry, col)
				} else {
					carry[col] = pendingCell{text: p.text, left: p.left - 1}
				}
				col++
			}
		}

		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			fill()
			cell.Find("br").ReplaceWithHtml(" ")
			text := cleanText(cell.Text())
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for range colspan {
				out = append(out, text)
				if rowspan > 1 {
					carry[col] = pendingCell{text: text, left: rowspan - 1}
				}
				col++
			}
		})
		fill()
		grid[r] = out
	}
	return grid
}

func spanAttr(cell *goquery.Selection, name string) int {
	v, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, 1000)
}

// cleanText collapses whitespace, including non-breaking spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// decodeBody converts the page to UTF-8 when it declares another charset.
func decodeBody(r io.Reader, contentType string) (io.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}

	name := charsetFromContentType(contentType)
	if name == "" {
		head := data[:min(len(data), 2048)]
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			name = string(m[1])
		}
	}
	if name == "" {
		return bytes.NewReader(data), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Warn("fetcher: unknown charset, assuming utf-8", zap.String("charset", name))
		return bytes.NewReader(data), nil
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return bytes.NewReader(data), nil
	}
	return enc.NewDecoder().Reader(bytes.NewReader(data)), nil
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
