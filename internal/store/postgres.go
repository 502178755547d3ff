package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/db"
	"github.com/sells-group/ppi-cli/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID is the advisory lock key held while migrations run.
const migrationLockID = 20240201

var ppiUpsert = db.UpsertConfig{
	Table:        "ppi.ppi_data",
	Columns:      []string{"date", "metric", "value", "is_preliminary"},
	ConflictKeys: []string{"date", "metric"},
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// EnsureSchema runs all pending SQL migrations in lexicographic order inside
// one transaction holding pg_advisory_xact_lock. The lock is released when the
// transaction ends. Every migration is written to be re-runnable.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: migrate: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", migrationLockID)); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}

	if err := ensureMigrationTable(ctx, tx); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO ppi.schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: migrate: commit tx")
}

func ensureMigrationTable(ctx context.Context, tx pgx.Tx) error {
	sql := `
		CREATE SCHEMA IF NOT EXISTS ppi;
		CREATE TABLE IF NOT EXISTS ppi.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := tx.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}
	return nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM ppi.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

// Load upserts the batch in one transaction after creating any missing
// month partitions.
func (s *PostgresStore) Load(ctx context.Context, records []model.Record) (int64, error) {
	if err := validateBatch(records); err != nil {
		return 0, err
	}

	for _, month := range distinctMonths(records) {
		if err := s.ensurePartition(ctx, month); err != nil {
			return 0, err
		}
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Date, r.Metric, r.Value, r.PreliminaryFlag()}
	}

	n, err := db.BulkUpsert(ctx, s.pool, ppiUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: load")
	}

	zap.L().Info("postgres: batch loaded",
		zap.Int("records", len(records)),
		zap.Int64("rows_affected", n),
	)
	return n, nil
}

// partitionName returns the child table holding the given month.
func partitionName(month time.Time) string {
	return fmt.Sprintf("ppi_data_%04d%02d", month.Year(), int(month.Month()))
}

func (s *PostgresStore) ensurePartition(ctx context.Context, month time.Time) error {
	next := month.AddDate(0, 1, 0)
	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s PARTITION OF ppi.ppi_data FOR VALUES FROM ('%s') TO ('%s')",
		pgx.Identifier{"ppi", partitionName(month)}.Sanitize(),
		month.Format(model.DateLayout),
		next.Format(model.DateLayout),
	)
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "postgres: create partition %s", partitionName(month))
	}
	return nil
}

// distinctMonths returns the sorted set of months covered by records.
func distinctMonths(records []model.Record) []time.Time {
	seen := make(map[time.Time]bool)
	var months []time.Time
	for _, r := range records {
		m := model.MonthStart(r.Date.Year(), r.Date.Month())
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// ReadBack returns the stored record for (metric, date), or nil when absent.
func (s *PostgresStore) ReadBack(ctx context.Context, metric string, date time.Time) (*model.Record, error) {
	var r model.Record
	var flag int16
	err := s.pool.QueryRow(ctx,
		`SELECT date, metric, value, is_preliminary FROM ppi.ppi_data WHERE metric = $1 AND date = $2`,
		metric, date,
	).Scan(&r.Date, &r.Metric, &r.Value, &flag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: read back %s %s", metric, date.Format(model.DateLayout))
	}
	r.Date = r.Date.UTC()
	r.IsPreliminary = flag == 1
	return &r, nil
}

// Records returns every stored record ordered by (date, metric).
func (s *PostgresStore) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, metric, value, is_preliminary FROM ppi.ppi_data ORDER BY date, metric`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var r model.Record
		var flag int16
		if err := rows.Scan(&r.Date, &r.Metric, &r.Value, &flag); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Date = r.Date.UTC()
		r.IsPreliminary = flag == 1
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

// Rollup reads the monthly change view, for one metric or all when metric is empty.
func (s *PostgresStore) Rollup(ctx context.Context, metric string) ([]model.RollupRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month, metric, value_avg, mom_change, yoy_change
		 FROM ppi.ppi_monthly_changes
		 WHERE ($1::text = '' OR metric = $1)
		 ORDER BY month, metric`,
		metric,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: rollup")
	}
	defer rows.Close()

	var out []model.RollupRow
	for rows.Next() {
		var r model.RollupRow
		if err := rows.Scan(&r.Month, &r.Metric, &r.ValueAvg, &r.MoMChange, &r.YoYChange); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rollup")
		}
		r.Month = r.Month.UTC()
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: rollup iterate")
}

// StartRun records the beginning of a pipeline run and returns its ID.
func (s *PostgresStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ppi.run_log (id, status, started_at) VALUES ($1, $2, now())`,
		id, string(model.RunStatusRunning),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

// CompleteRun marks a run as successfully completed.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rowsLoaded int64, metadata map[string]any) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run metadata")
		}
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE ppi.run_log
		 SET status = $1, completed_at = now(), rows_loaded = $2, metadata = $3
		 WHERE id = $4`,
		string(model.RunStatusComplete), rowsLoaded, metaJSON, runID,
	)
	return eris.Wrapf(err, "postgres: complete run %s", runID)
}

// FailRun marks a run as failed with an error message.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ppi.run_log
		 SET status = $1, completed_at = now(), error = $2
		 WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID,
	)
	return eris.Wrapf(err, "postgres: fail run %s", runID)
}

// ListRuns returns the most recent run log entries first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, rows_loaded, error, metadata
		 FROM ppi.run_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var entries []model.RunEntry
	for rows.Next() {
		var e model.RunEntry
		var status string
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &status, &e.StartedAt, &e.CompletedAt, &e.RowsLoaded, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		e.Status = model.RunStatus(status)
		if errStr != nil {
			e.Error = *errStr
		}
		e.Metadata = decodeRunMetadata(e.ID, metaJSON)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
