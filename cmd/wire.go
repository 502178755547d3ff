package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ppi-cli/internal/config"
	"github.com/sells-group/ppi-cli/internal/fetcher"
	"github.com/sells-group/ppi-cli/internal/pipeline"
	"github.com/sells-group/ppi-cli/internal/store"
	"github.com/sells-group/ppi-cli/internal/transform"
)

func storeOptions(c *config.Config) store.Options {
	return store.Options{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		SQLitePath:  c.Store.SQLitePath,
		Pool: &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		},
	}
}

// loadLayout returns the embedded layout, or the configured layout file,
// with the config's transform overrides applied.
func loadLayout(c *config.Config) (transform.Layout, error) {
	l := transform.DefaultLayout()
	if c.Transform.LayoutFile != "" {
		var err error
		l, err = transform.LoadLayout(c.Transform.LayoutFile)
		if err != nil {
			return transform.Layout{}, err
		}
	}
	if c.Transform.BoundaryMonth != 0 {
		l.BoundaryMonth = c.Transform.BoundaryMonth
	}
	if c.Transform.FollowYearMarkers {
		l.FollowYearMarkers = true
	}
	if err := l.Validate(); err != nil {
		return transform.Layout{}, err
	}
	return l, nil
}

func newSource(c *config.Config) *fetcher.BLSSource {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Source.UserAgent,
		Timeout:    time.Duration(c.Source.TimeoutSecs) * time.Second,
		MaxRetries: c.Source.MaxRetries,
		Headers:    c.Source.Headers,
	})
	return fetcher.NewBLSSource(f, c.Source.URL)
}

// newPipeline validates the config and builds a pipeline. withSource is
// false for commands that never touch the release page.
func newPipeline(c *config.Config, withSource bool) (*pipeline.Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	layout, err := loadLayout(c)
	if err != nil {
		return nil, eris.Wrap(err, "load layout")
	}

	var src pipeline.Source
	if withSource {
		src = newSource(c)
	}
	return pipeline.New(layout, src, store.NewOpener(storeOptions(c)), pipeline.Options{
		WaitAttempts: c.Store.WaitAttempts,
		WaitInterval: c.Store.WaitInterval(),
	}), nil
}

// openStore waits for the configured store and applies the schema.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	st, err := store.WaitReady(ctx, store.NewOpener(storeOptions(c)), c.Store.WaitAttempts, c.Store.WaitInterval())
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "ensure schema")
	}
	return st, nil
}
