package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/chart"
	"github.com/sells-group/ppi-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// executeWithEnv runs the root command in a temp working directory with a
// SQLite store configured through PPI_* variables.
func executeWithEnv(t *testing.T, dir string, args ...string) error {
	t.Helper()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Setenv("PPI_STORE_DRIVER", "sqlite")
	t.Setenv("PPI_STORE_SQLITE_PATH", filepath.Join(dir, "ppi.db"))
	t.Setenv("PPI_STORE_WAIT_ATTEMPTS", "1")
	t.Setenv("PPI_LOG_LEVEL", "error")

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

const stageCSV = `date,metric,value,is_preliminary
2024-01-01,stage_1_total,100,0
2024-02-01,stage_1_total,110,0
2024-03-01,stage_1_total,121,1
2024-01-01,stage_4_total,200,0
2024-02-01,stage_4_total,201,0
2024-03-01,stage_4_total,202,0
2024-03-01,stage_4_total,oops,0
`

func TestCommands_LoadCSVThenVisualize(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ppi.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(stageCSV), 0o644))

	require.NoError(t, executeWithEnv(t, dir, "migrate"))
	require.NoError(t, executeWithEnv(t, dir, "load-csv", csvPath))
	require.NoError(t, executeWithEnv(t, dir, "status"))
	require.NoError(t, executeWithEnv(t, dir, "rollup", "stage_1_total"))
	require.NoError(t, executeWithEnv(t, dir, "visualize"))

	st, err := store.NewSQLite(filepath.Join(dir, "ppi.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	records, err := st.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 6)

	for _, name := range []string{"ppi_data_export.csv", "ppi_data_export.xlsx", chart.PressurePNG, chart.PressureHTML} {
		_, err := os.Stat(filepath.Join(dir, "output", name))
		assert.NoError(t, err, name)
	}

	exported, err := os.ReadFile(filepath.Join(dir, "output", "ppi_data_export.csv"))
	require.NoError(t, err)
	assert.Equal(t, 7, strings.Count(string(exported), "\n"))
}

func TestCommands_LoadCSVMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := executeWithEnv(t, dir, "load-csv", filepath.Join(dir, "nope.csv"))
	require.Error(t, err)
}

func TestCommands_VisualizeEmptyStore(t *testing.T) {
	dir := t.TempDir()
	err := executeWithEnv(t, dir, "visualize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is empty")
}

func TestCommands_Config(t *testing.T) {
	require.NoError(t, executeWithEnv(t, t.TempDir(), "config"))
}
