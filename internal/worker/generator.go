package worker

import (
	"context"
	"time"

	"github.com/sesh/internal/runner"
)

// Generate feeds picked requests into pool until total requests have been
// submitted or duration has elapsed, whichever comes first. A zero total
// or duration disables that bound. It returns once the pool has finished.
func Generate(ctx context.Context, pool *Pool, picker *runner.Picker, total int, duration time.Duration) Report {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	pool.Start(ctx)

	submitted := 0
	backoff := time.NewTicker(5 * time.Millisecond)
	defer backoff.Stop()

feed:
	for total == 0 || submitted < total {
		if ctx.Err() != nil {
			break
		}
		if pool.Submit(Job{Request: picker.Pick()}) {
			submitted++
			continue
		}
		// Queue full, back off
		select {
		case <-ctx.Done():
			break feed
		case <-backoff.C:
		}
	}

	if ctx.Err() != nil {
		pool.Stop()
	} else {
		pool.Wait()
	}
	return pool.Report()
}
