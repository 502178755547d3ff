package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func rec(year int, month time.Month, metric string, value float64) model.Record {
	return model.Record{Date: model.MonthStart(year, month), Metric: metric, Value: value}
}

func TestSQLite_EnsureSchema_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchema(ctx))
	require.NoError(t, st.EnsureSchema(ctx))

	var tables, views int
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'ppi_data'`).Scan(&tables))
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'view' AND name = 'ppi_monthly_changes'`).Scan(&views))
	assert.Equal(t, 1, tables)
	assert.Equal(t, 1, views)
}

func TestSQLite_Load_EmptyBatch(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestSQLite_Load_InvalidRecord(t *testing.T) {
	st := newTestSQLiteStore(t)

	bad := model.Record{Date: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Metric: "m", Value: 1}
	_, err := st.Load(context.Background(), []model.Record{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid record")
}

func TestSQLite_LoadAndReadBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	prelim := rec(2024, time.March, "final_demand", 142.5)
	prelim.IsPreliminary = true

	n, err := st.Load(ctx, []model.Record{
		rec(2024, time.February, "final_demand", 141.2),
		prelim,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := st.ReadBack(ctx, "final_demand", model.MonthStart(2024, time.March))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, prelim, *got)

	missing, err := st.ReadBack(ctx, "final_demand", model.MonthStart(2019, time.January))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLite_Load_UpsertReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Load(ctx, []model.Record{rec(2024, time.February, "services", 130)})
	require.NoError(t, err)

	revised := rec(2024, time.February, "services", 131.5)
	revised.IsPreliminary = true
	_, err = st.Load(ctx, []model.Record{revised})
	require.NoError(t, err)

	all, err := st.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, revised, all[0])
}

func TestSQLite_Records_Ordered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Load(ctx, []model.Record{
		rec(2024, time.March, "b", 1),
		rec(2024, time.February, "b", 2),
		rec(2024, time.February, "a", 3),
	})
	require.NoError(t, err)

	all, err := st.Records(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02-01/a", all[0].Key())
	assert.Equal(t, "2024-02-01/b", all[1].Key())
	assert.Equal(t, "2024-03-01/b", all[2].Key())
}

func TestSQLite_Rollup_MonthOverMonth(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Load(ctx, []model.Record{
		rec(2024, time.January, "final_demand", 100),
		rec(2024, time.February, "final_demand", 110),
		rec(2024, time.March, "final_demand", 121),
		rec(2024, time.March, "services", 50),
	})
	require.NoError(t, err)

	rows, err := st.Rollup(ctx, "final_demand")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Nil(t, rows[0].MoMChange)
	require.NotNil(t, rows[2].MoMChange)
	assert.InDelta(t, 0.1, *rows[2].MoMChange, 1e-9)
	assert.Equal(t, model.MonthStart(2024, time.March), rows[2].Month)
	assert.InDelta(t, 121.0, rows[2].ValueAvg, 1e-9)
	for _, r := range rows {
		assert.Nil(t, r.YoYChange)
	}

	all, err := st.Rollup(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLite_Rollup_YearOverYear(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var batch []model.Record
	for i := range 13 {
		d := model.MonthStart(2023, time.January).AddDate(0, i, 0)
		batch = append(batch, model.Record{Date: d, Metric: "stage_4", Value: 200 + float64(i)})
	}
	_, err := st.Load(ctx, batch)
	require.NoError(t, err)

	rows, err := st.Rollup(ctx, "stage_4")
	require.NoError(t, err)
	require.Len(t, rows, 13)

	last := rows[12]
	assert.Equal(t, model.MonthStart(2024, time.January), last.Month)
	require.NotNil(t, last.YoYChange)
	assert.InDelta(t, 12.0/200.0, *last.YoYChange, 1e-9)
	assert.Nil(t, rows[11].YoYChange)
}

func TestSQLite_Rollup_GapAndZero(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Load(ctx, []model.Record{
		rec(2024, time.January, "gap", 100),
		rec(2024, time.March, "gap", 120),
		rec(2024, time.January, "zero", 0),
		rec(2024, time.February, "zero", 5),
	})
	require.NoError(t, err)

	gap, err := st.Rollup(ctx, "gap")
	require.NoError(t, err)
	require.Len(t, gap, 2)
	assert.Nil(t, gap[1].MoMChange)

	zero, err := st.Rollup(ctx, "zero")
	require.NoError(t, err)
	require.Len(t, zero, 2)
	assert.Nil(t, zero[1].MoMChange)
}

func TestSQLite_RunLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	okID, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, okID, 42, map[string]any{"records": 42}))

	failID, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, failID, "format drift in table services: no year marker"))

	entries, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]model.RunEntry{}
	for _, e := range entries {
		byID[e.ID] = e
	}

	ok := byID[okID]
	assert.Equal(t, model.RunStatusComplete, ok.Status)
	assert.Equal(t, int64(42), ok.RowsLoaded)
	assert.NotNil(t, ok.CompletedAt)
	assert.Equal(t, float64(42), ok.Metadata["records"])

	failed := byID[failID]
	assert.Equal(t, model.RunStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "no year marker")
	assert.Nil(t, failed.Metadata)
}

func TestSQLite_ListRuns_BadMetadata(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	logs := observeLogs(t)

	id, err := st.StartRun(ctx)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `UPDATE run_log SET metadata = ? WHERE id = ?`, `{"records":`, id)
	require.NoError(t, err)

	entries, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Metadata)
	require.Equal(t, 1, logs.FilterField(zap.String("run_id", id)).Len())
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestNewSQLite_CreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "ppi.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.EnsureSchema(context.Background()))
}
