package transform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	require.NoError(t, l.Validate())
	assert.Equal(t, "month", l.MonthColumn)
	assert.Equal(t, "grouping", l.LabelColumn)
	assert.Equal(t, 2, l.BoundaryMonth)
	assert.False(t, l.FollowYearMarkers)
	assert.Len(t, l.Tables, 4)
}

func TestLayout_MonthNumber(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	tests := []struct {
		token string
		want  time.Month
		ok    bool
	}{
		{"Jan.", time.January, true},
		{"jan", time.January, true},
		{"Sept.", time.September, true},
		{"Sep.", time.September, true},
		{"December", time.December, true},
		{"MAY", time.May, true},
		{"Foo.", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := l.MonthNumber(tt.token)
		assert.Equal(t, tt.ok, ok, tt.token)
		assert.Equal(t, tt.want, got, tt.token)
	}
}

func TestLayout_TableName(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	assert.Equal(t, "final_demand", l.TableName(0))
	assert.Equal(t, "stage_of_production", l.TableName(3))
	assert.Equal(t, "table_5", l.TableName(4))
}

func TestLayout_YearFor(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	assert.Equal(t, 2025, l.yearFor(2024, time.January))
	assert.Equal(t, 2024, l.yearFor(2024, time.February))
	assert.Equal(t, 2024, l.yearFor(2024, time.December))

	l.BoundaryMonth = 1
	assert.Equal(t, 2024, l.yearFor(2024, time.January))
}

func TestLoadLayout_Overlay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boundary_month: 1\nmonths:\n  Janv.: 1\n"), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, 1, l.BoundaryMonth)
	assert.Equal(t, "month", l.MonthColumn)

	m, ok := l.MonthNumber("janv")
	assert.True(t, ok)
	assert.Equal(t, time.January, m)
}

func TestLoadLayout_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("boundary_month: 13\n"), 0o644))
	_, err := LoadLayout(bad)
	assert.ErrorContains(t, err, "boundary_month")

	garbage := filepath.Join(dir, "garbage.yaml")
	require.NoError(t, os.WriteFile(garbage, []byte("months: [1, 2"), 0o644))
	_, err = LoadLayout(garbage)
	assert.Error(t, err)

	_, err = LoadLayout(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read layout")
}
