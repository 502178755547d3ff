package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
)

// csvRow is the on-disk form of a record: the base-table columns.
type csvRow struct {
	Date          string  `csv:"date"`
	Metric        string  `csv:"metric"`
	Value         float64 `csv:"value"`
	IsPreliminary int     `csv:"is_preliminary"`
}

var csvHeader = []string{"date", "metric", "value", "is_preliminary"}

// WriteCSV writes records as date,metric,value,is_preliminary rows.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "pipeline: write csv header")
	}
	for _, r := range records {
		row := csvRow{
			Date:          r.Date.Format(model.DateLayout),
			Metric:        r.Metric,
			Value:         r.Value,
			IsPreliminary: int(r.PreliminaryFlag()),
		}
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "pipeline: write csv row %s", r.Key())
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "pipeline: flush csv")
}

// ImportStats counts what ReadCSV did with the input rows.
type ImportStats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// ReadCSV parses a CSV export. Rows that do not convert to a valid record are
// skipped and counted; an input that yields no records is an error.
func ReadCSV(r io.Reader) ([]model.Record, ImportStats, error) {
	log := zap.L().With(zap.String("component", "pipeline.csv"))
	var stats ImportStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr, csvHeader...)
	if err != nil {
		return nil, stats, eris.Wrap(err, "pipeline: read csv")
	}
	header, err := cr.Read()
	if err != nil {
		return nil, stats, eris.Wrap(err, "pipeline: read csv header")
	}
	if err := checkHeader(header); err != nil {
		return nil, stats, err
	}

	var records []model.Record
	for {
		var row csvRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		stats.Rows++
		if err != nil {
			if !isRowError(err) {
				return nil, stats, eris.Wrap(err, "pipeline: read csv")
			}
			stats.Skipped++
			log.Debug("skipping csv row", zap.Int("row", stats.Rows), zap.Error(err))
			continue
		}

		rec, err := row.record()
		if err != nil {
			stats.Skipped++
			log.Debug("skipping csv row", zap.Int("row", stats.Rows), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	if stats.Skipped > 0 {
		log.Warn("csv rows skipped", zap.Int("skipped", stats.Skipped), zap.Int("rows", stats.Rows))
	}
	if len(records) == 0 {
		return nil, stats, eris.Errorf("pipeline: csv contained no valid records (%d rows, %d skipped)", stats.Rows, stats.Skipped)
	}
	return records, stats, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]model.Record, ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImportStats{}, eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// WriteCSVFile writes records to path, creating parent directories.
func WriteCSVFile(path string, records []model.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "pipeline: close %s", path)
}

func (c csvRow) record() (model.Record, error) {
	d, err := time.Parse(model.DateLayout, c.Date)
	if err != nil {
		return model.Record{}, eris.Wrapf(err, "bad date %q", c.Date)
	}
	if c.IsPreliminary != 0 && c.IsPreliminary != 1 {
		return model.Record{}, eris.Errorf("bad is_preliminary %d", c.IsPreliminary)
	}
	rec := model.Record{
		Date:          d,
		Metric:        c.Metric,
		Value:         c.Value,
		IsPreliminary: c.IsPreliminary == 1,
	}
	return rec, rec.Validate()
}

func checkHeader(header []string) error {
	if len(header) < len(csvHeader) {
		return eris.Errorf("pipeline: csv header %v, want %v", header, csvHeader)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return eris.Errorf("pipeline: csv header %v, want %v", header, csvHeader)
		}
	}
	return nil
}

func isRowError(err error) bool {
	var ute *csvutil.UnmarshalTypeError
	var pe *csv.ParseError
	return errors.As(err, &ute) || errors.As(err, &pe) || errors.Is(err, csv.ErrFieldCount) || errors.Is(err, csvutil.ErrFieldCount)
}

// WriteXLSX writes records to a single-sheet workbook at path.
func WriteXLSX(path string, records []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("ppi_data")
	if err != nil {
		return eris.Wrap(err, "pipeline: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range csvHeader {
		header.AddCell().SetString(name)
	}
	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Date.Format(model.DateLayout))
		row.AddCell().SetString(r.Metric)
		row.AddCell().SetFloat(r.Value)
		row.AddCell().SetInt(int(r.PreliminaryFlag()))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create %s", filepath.Dir(path))
	}
	return eris.Wrapf(f.Save(path), "pipeline: save %s", path)
}
