package election

import (
	"context"
	"time"

	"github.com/alex-pricope/campus-election-system/logging"
)

// DefaultLiveInterval is how often live counts are recomputed per observer.
const DefaultLiveInterval = 5 * time.Second

// Watch emits a snapshot immediately and then once per interval until ctx is
// done or emit fails. A failed fetch skips that tick. The ticker is stopped on
// every return path.
func Watch[T any](ctx context.Context, interval time.Duration, fetch func(context.Context) (T, error), emit func(T) error) error {
	if interval <= 0 {
		interval = DefaultLiveInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	push := func() error {
		snapshot, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Log.Warnf("LIVE: failed to compute snapshot: %v", err)
			return nil
		}
		return emit(snapshot)
	}

	if err := push(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := push(); err != nil {
				return err
			}
		}
	}
}
