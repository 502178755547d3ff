package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/ppi-cli/internal/model"
)

func TestFormatRollupRows(t *testing.T) {
	mom := 0.1
	yoy := -0.025
	rows := []model.RollupRow{
		{Month: model.MonthStart(2024, time.January), Metric: "final_demand", ValueAvg: 110},
		{Month: model.MonthStart(2024, time.February), Metric: "final_demand", ValueAvg: 121, MoMChange: &mom, YoYChange: &yoy},
	}

	var buf bytes.Buffer
	formatRollupRows(&buf, rows)

	output := buf.String()
	assert.Contains(t, output, "MONTH")
	assert.Contains(t, output, "2024-01")
	assert.Contains(t, output, "2024-02")
	assert.Contains(t, output, "121.0")
	assert.Contains(t, output, "+10.00%")
	assert.Contains(t, output, "-2.50%")
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "-", formatChange(nil))
	v := 0.0
	assert.Equal(t, "+0.00%", formatChange(&v))
}
