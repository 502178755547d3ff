package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ppi-cli/internal/model"
)

// sqliteTimeLayout is a fixed-width UTC layout so run log timestamps sort
// lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite. Dates are stored as
// YYYY-MM-DD text so the rollup view can use SQLite's date functions.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create directory for %s", dsn)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ppi_data (
	date           TEXT    NOT NULL,
	metric         TEXT    NOT NULL,
	value          REAL    NOT NULL,
	is_preliminary INTEGER NOT NULL DEFAULT 0 CHECK (is_preliminary IN (0, 1)),
	PRIMARY KEY (date, metric)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_ppi_data_month ON ppi_data (substr(date, 1, 7));
CREATE INDEX IF NOT EXISTS idx_ppi_data_metric_date ON ppi_data (metric, date);

CREATE VIEW IF NOT EXISTS ppi_monthly_changes AS
WITH monthly AS (
	SELECT date(date, 'start of month') AS month,
	       metric,
	       AVG(value) AS value_avg
	FROM ppi_data
	GROUP BY 1, 2
)
SELECT m.month,
       m.metric,
       m.value_avg,
       (m.value_avg - p1.value_avg) / NULLIF(p1.value_avg, 0)   AS mom_change,
       (m.value_avg - p12.value_avg) / NULLIF(p12.value_avg, 0) AS yoy_change
FROM monthly m
LEFT JOIN monthly p1
       ON p1.metric = m.metric
      AND p1.month = date(m.month, '-1 month')
LEFT JOIN monthly p12
       ON p12.metric = m.metric
      AND p12.month = date(m.month, '-12 months');

CREATE TABLE IF NOT EXISTS run_log (
	id           TEXT    PRIMARY KEY,
	status       TEXT    NOT NULL,
	started_at   TEXT    NOT NULL,
	completed_at TEXT,
	rows_loaded  INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_log_started_at ON run_log (started_at);
`

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: ensure schema")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load upserts the batch in one transaction. A later row for the same
// (date, metric) replaces an earlier one.
func (s *SQLiteStore) Load(ctx context.Context, records []model.Record) (int64, error) {
	if err := validateBatch(records); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ppi_data (date, metric, value, is_preliminary) VALUES (?, ?, ?, ?)
		ON CONFLICT (date, metric) DO UPDATE SET
			value = excluded.value,
			is_preliminary = excluded.is_preliminary`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range records {
		res, err := stmt.ExecContext(ctx, r.Date.Format(model.DateLayout), r.Metric, r.Value, r.PreliminaryFlag())
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s", r.Key())
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}

	zap.L().Info("sqlite: batch loaded",
		zap.Int("records", len(records)),
		zap.Int64("rows_affected", n),
	)
	return n, nil
}

// ReadBack returns the stored record for (metric, date), or nil when absent.
func (s *SQLiteStore) ReadBack(ctx context.Context, metric string, date time.Time) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT date, metric, value, is_preliminary FROM ppi_data WHERE metric = ? AND date = ?`,
		metric, date.Format(model.DateLayout),
	)
	r, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read back %s %s", metric, date.Format(model.DateLayout))
	}
	return r, nil
}

// Records returns every stored record ordered by (date, metric).
func (s *SQLiteStore) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, metric, value, is_preliminary FROM ppi_data ORDER BY date, metric`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*model.Record, error) {
	var r model.Record
	var date string
	var flag int
	if err := row.Scan(&date, &r.Metric, &r.Value, &flag); err != nil {
		return nil, err
	}
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse date %q", date)
	}
	r.Date = d
	r.IsPreliminary = flag == 1
	return &r, nil
}

// Rollup reads the monthly change view, for one metric or all when metric is empty.
func (s *SQLiteStore) Rollup(ctx context.Context, metric string) ([]model.RollupRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, metric, value_avg, mom_change, yoy_change
		 FROM ppi_monthly_changes
		 WHERE (? = '' OR metric = ?)
		 ORDER BY month, metric`,
		metric, metric,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rollup")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RollupRow
	for rows.Next() {
		var r model.RollupRow
		var month string
		var mom, yoy sql.NullFloat64
		if err := rows.Scan(&month, &r.Metric, &r.ValueAvg, &mom, &yoy); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rollup")
		}
		if r.Month, err = time.Parse(model.DateLayout, month); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse month %q", month)
		}
		r.MoMChange = nullFloat(mom)
		r.YoYChange = nullFloat(yoy)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: rollup iterate")
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// StartRun records the beginning of a pipeline run and returns its ID.
func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStatusRunning), time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

// CompleteRun marks a run as successfully completed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, rowsLoaded int64, metadata map[string]any) error {
	var meta sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run metadata")
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, rows_loaded = ?, metadata = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC().Format(sqliteTimeLayout), rowsLoaded, meta, runID,
	)
	return eris.Wrapf(err, "sqlite: complete run %s", runID)
}

// FailRun marks a run as failed with an error message.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC().Format(sqliteTimeLayout), errMsg, runID,
	)
	return eris.Wrapf(err, "sqlite: fail run %s", runID)
}

// ListRuns returns the most recent run log entries first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, rows_loaded, error, metadata
		 FROM run_log ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status, startedAt string
		var completedAt, errStr, meta sql.NullString
		if err := rows.Scan(&e.ID, &status, &startedAt, &completedAt, &e.RowsLoaded, &errStr, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		e.Status = model.RunStatus(status)
		if e.StartedAt, err = time.Parse(sqliteTimeLayout, startedAt); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse started_at %q", startedAt)
		}
		if completedAt.Valid {
			t, err := time.Parse(sqliteTimeLayout, completedAt.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: parse completed_at %q", completedAt.String)
			}
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		if meta.Valid {
			e.Metadata = decodeRunMetadata(e.ID, []byte(meta.String))
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
