package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ppi-cli/internal/model"
	"github.com/sells-group/ppi-cli/internal/store"
	"github.com/sells-group/ppi-cli/internal/transform"
)

// Source supplies the raw tables of the release page in page order.
type Source interface {
	FetchTables(ctx context.Context) ([]model.RawTable, error)
}

// Options controls how the pipeline reaches the store.
type Options struct {
	WaitAttempts int
	WaitInterval time.Duration
}

// Phase records the outcome of one pipeline step.
type Phase struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunResult is what a successful run produced.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Dataset    *model.Dataset `json:"dataset"`
	RowsLoaded int64          `json:"rows_loaded"`
	Phases     []Phase        `json:"phases"`
}

// Pipeline runs fetch, reshape, combine and load against one store.
type Pipeline struct {
	layout   transform.Layout
	reshaper *transform.Reshaper
	source   Source
	open     store.Opener
	opts     Options
}

// New creates a Pipeline. source may be nil for pipelines that only load
// existing datasets.
func New(layout transform.Layout, source Source, open store.Opener, opts Options) *Pipeline {
	if opts.WaitAttempts <= 0 {
		opts.WaitAttempts = 30
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 2 * time.Second
	}
	return &Pipeline{
		layout:   layout,
		reshaper: transform.NewReshaper(layout),
		source:   source,
		open:     open,
		opts:     opts,
	}
}

// Run fetches the source tables, reshapes and combines them, then loads the
// dataset. Any failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	log.Info("pipeline: starting run")

	if p.source == nil {
		return nil, eris.New("pipeline: no source configured")
	}

	result := &RunResult{}
	track := phaseTracker(log, result)

	var tables []model.RawTable
	if err := track("fetch", func() error {
		var err error
		tables, err = p.source.FetchTables(ctx)
		return err
	}); err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch")
	}

	if err := track("reshape", func() error {
		ds, err := p.Transform(ctx, tables)
		result.Dataset = ds
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.load(ctx, result, track); err != nil {
		return nil, err
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", result.RunID),
		zap.Int64("rows_loaded", result.RowsLoaded),
		zap.Int("metrics", len(result.Dataset.Summary.Metrics)),
	)
	return result, nil
}

// Transform reshapes the first len(layout.Tables) tables concurrently and
// combines them in canonical order. Extra tables on the page are ignored.
func (p *Pipeline) Transform(ctx context.Context, tables []model.RawTable) (*model.Dataset, error) {
	want := len(p.layout.Tables)
	if want == 0 {
		want = len(tables)
	}
	if len(tables) < want {
		return nil, &transform.FormatError{
			Reason: fmt.Sprintf("source returned %d tables, expected %d", len(tables), want),
		}
	}
	tables = tables[:want]

	results := make([]*transform.Result, len(tables))
	g, gCtx := errgroup.WithContext(ctx)
	for i := range tables {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := p.reshaper.Reshape(tables[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: reshape")
	}

	return Combine(results), nil
}

// LoadDataset loads an already combined dataset, as the load-csv command does.
func (p *Pipeline) LoadDataset(ctx context.Context, ds *model.Dataset) (*RunResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	result := &RunResult{Dataset: ds}
	if err := p.load(ctx, result, phaseTracker(log, result)); err != nil {
		return nil, err
	}
	return result, nil
}

// Migrate waits for the store and applies the schema.
func (p *Pipeline) Migrate(ctx context.Context) error {
	st, err := store.WaitReady(ctx, p.open, p.opts.WaitAttempts, p.opts.WaitInterval)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	return eris.Wrap(st.EnsureSchema(ctx), "pipeline: ensure schema")
}

func (p *Pipeline) load(ctx context.Context, result *RunResult, track func(string, func() error) error) error {
	log := zap.L().With(zap.String("component", "pipeline"))
	ds := result.Dataset
	if ds == nil || len(ds.Records) == 0 {
		return eris.Wrap(store.ErrEmptyBatch, "pipeline: nothing to load")
	}

	var st store.Store
	if err := track("wait_store", func() error {
		var err error
		st, err = store.WaitReady(ctx, p.open, p.opts.WaitAttempts, p.opts.WaitInterval)
		return err
	}); err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.EnsureSchema(ctx); err != nil {
		return eris.Wrap(err, "pipeline: ensure schema")
	}

	runID, err := st.StartRun(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: start run")
	}
	result.RunID = runID

	fail := func(err error) error {
		// The run context may already be cancelled; the failure still goes in the log.
		if ferr := st.FailRun(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
			log.Warn("pipeline: failed to record run failure", zap.String("run_id", runID), zap.Error(ferr))
		}
		return err
	}

	if err := track("load", func() error {
		n, err := st.Load(ctx, ds.Records)
		result.RowsLoaded = n
		return err
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: load"))
	}

	if err := track("verify", func() error {
		return verify(ctx, st, ds)
	}); err != nil {
		return fail(err)
	}

	if err := st.CompleteRun(ctx, runID, result.RowsLoaded, ds.Summary.Metadata()); err != nil {
		return eris.Wrap(err, "pipeline: complete run")
	}
	return nil
}

// verify reads back the last record of the dataset and checks it matches.
func verify(ctx context.Context, st store.Store, ds *model.Dataset) error {
	want := ds.Records[len(ds.Records)-1]
	got, err := st.ReadBack(ctx, want.Metric, want.Date)
	if err != nil {
		return eris.Wrap(err, "pipeline: read back")
	}
	if got == nil {
		return eris.Errorf("pipeline: read back: %s not found after load", want.Key())
	}
	if got.Value != want.Value || got.IsPreliminary != want.IsPreliminary {
		return eris.Errorf("pipeline: read back: %s stored as %v (preliminary=%t), loaded %v (preliminary=%t)",
			want.Key(), got.Value, got.IsPreliminary, want.Value, want.IsPreliminary)
	}
	return nil
}

// phaseTracker times each step, logs its outcome and appends it to the result.
func phaseTracker(log *zap.Logger, result *RunResult) func(string, func() error) error {
	return func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		phase := Phase{Name: name, DurationMS: time.Since(start).Milliseconds()}
		if err != nil {
			phase.Error = err.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", phase.DurationMS),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", phase.DurationMS),
			)
		}
		result.Phases = append(result.Phases, phase)
		return err
	}
}
