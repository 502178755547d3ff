package model

import "time"

// RollupRow is one row of the monthly rollup view. Change fields are nil when
// the comparison month is missing or its average is zero.
type RollupRow struct {
	Month     time.Time `json:"month"`
	Metric    string    `json:"metric"`
	ValueAvg  float64   `json:"value_avg"`
	MoMChange *float64  `json:"mom_change,omitempty"`
	YoYChange *float64  `json:"yoy_change,omitempty"`
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunEntry represents a row in the run log.
type RunEntry struct {
	ID          string         `json:"id"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsLoaded  int64          `json:"rows_loaded"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
