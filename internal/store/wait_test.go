package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReady_SucceedsAfterTransientFailures(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wait.db")

	var calls int
	open := func(ctx context.Context) (Store, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		st, err := NewSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	st, err := WaitReady(context.Background(), open, 5, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	assert.Equal(t, 3, calls)
}

func TestWaitReady_ExhaustsAttempts(t *testing.T) {
	var calls int
	open := func(ctx context.Context) (Store, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	_, err := WaitReady(context.Background(), open, 4, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "not ready after 4 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWaitReady_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	open := func(ctx context.Context) (Store, error) {
		calls++
		return nil, ctx.Err()
	}

	_, err := WaitReady(ctx, open, 30, time.Hour)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
