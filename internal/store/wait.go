package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ppi-cli/internal/resilience"
)

// WaitReady polls open until the store answers a ping. It makes at most
// attempts tries, sleeping interval between them, and returns the last error
// when every attempt fails.
func WaitReady(ctx context.Context, open Opener, attempts int, interval time.Duration) (Store, error) {
	log := zap.L().With(zap.String("component", "store.wait"))

	cfg := resilience.FixedInterval(attempts, interval)
	cfg.OnRetry = resilience.RetryLogger("store", "wait_ready")

	st, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (Store, error) {
		st, err := open(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: not ready after %d attempts", attempts)
	}

	log.Info("store ready")
	return st, nil
}
