// Package store persists PPI records and the run log to Postgres or SQLite.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/model"
)

// ErrEmptyBatch is returned by Load when there is nothing to insert.
var ErrEmptyBatch = eris.New("store: empty batch")

// Store is the analytical store: a base table of records keyed by
// (date, metric), a derived monthly rollup view and a run log.
type Store interface {
	// Schema
	EnsureSchema(ctx context.Context) error

	// Records
	Load(ctx context.Context, records []model.Record) (int64, error)
	ReadBack(ctx context.Context, metric string, date time.Time) (*model.Record, error)
	Records(ctx context.Context) ([]model.Record, error)
	Rollup(ctx context.Context, metric string) ([]model.RollupRow, error)

	// Run log
	StartRun(ctx context.Context) (string, error)
	CompleteRun(ctx context.Context, runID string, rowsLoaded int64, metadata map[string]any) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Opener opens a store connection. WaitReady calls it until the store answers.
type Opener func(ctx context.Context) (Store, error)

// Options selects and configures a store backend.
type Options struct {
	Driver      string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string
	Pool        *PoolConfig
}

// NewOpener returns an Opener for the configured backend.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (Store, error) {
		return Open(ctx, opts)
	}
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "postgres", "":
		if opts.DatabaseURL == "" {
			return nil, eris.New("store: database_url is required for the postgres driver")
		}
		st, err := NewPostgres(ctx, opts.DatabaseURL, opts.Pool)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		if opts.SQLitePath == "" {
			return nil, eris.New("store: sqlite_path is required for the sqlite driver")
		}
		st, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
}

// validateBatch rejects empty batches and records that break the row invariants.
func validateBatch(records []model.Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return eris.Wrap(err, "store: invalid record")
		}
	}
	return nil
}

// decodeRunMetadata parses a run's stored metadata. A malformed document is
// logged and yields nil.
func decodeRunMetadata(runID string, raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		zap.L().Warn("store: undecodable run metadata",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return nil
	}
	return meta
}
