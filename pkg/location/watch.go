package location

import (
	"context"
	"sync"
	"time"
)

// cancelWatch is a Watch backed by a context cancel function plus optional
// resources to release. Clear never blocks on the watch goroutine, so it is
// safe to call from within a callback.
type cancelWatch struct {
	cancel  context.CancelFunc
	release func()
	once    sync.Once
}

func (w *cancelWatch) Clear() {
	w.once.Do(func() {
		w.cancel()
		if w.release != nil {
			w.release()
		}
	})
}

// pollWatch calls fetch immediately and then every interval, forwarding fixes
// to onReading until the first error, which is passed to onError.
func pollWatch(interval time.Duration, opts PositionOptions,
	fetch func(context.Context, PositionOptions) (Reading, error),
	onReading func(Reading), onError func(error)) Watch {

	ctx, cancel := context.WithCancel(context.Background())
	w := &cancelWatch{cancel: cancel}

	go func() {
		defer w.Clear()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			reading, err := fetch(ctx, opts)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			onReading(reading)

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return w
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
