// Package backoff implements bounded readiness polling with logarithmically
// growing sleeps, used while waiting for asynchronously processed media
// uploads to become available.
package backoff

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy bounds a readiness poll. MaxWait caps the total time spent sleeping;
// a zero MaxWait means wait forever.
type Policy struct {
	MaxWait time.Duration
	OnWait  func(attempt int, sleep time.Duration)
}

// Check probes whether the awaited condition holds yet.
type Check func(ctx context.Context) (done bool, err error)

// ErrTimeout is returned when the condition did not hold within MaxWait.
type ErrTimeout struct {
	Waited time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("condition not met after %s", e.Waited)
}

// Poll calls check until it reports done, sleeping log2(1+attempt) seconds
// between attempts. It returns the check's error unchanged, an *ErrTimeout
// when the policy's MaxWait elapses, or the context error on cancellation.
func Poll(ctx context.Context, clock clockwork.Clock, p Policy, check Check) error {
	var waited time.Duration

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		sleep := time.Duration(math.Log2(float64(1+attempt)) * float64(time.Second))
		if p.MaxWait > 0 && waited+sleep > p.MaxWait {
			return &ErrTimeout{Waited: waited}
		}

		if p.OnWait != nil {
			p.OnWait(attempt, sleep)
		}

		select {
		case <-clock.After(sleep):
			waited += sleep
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting: %w", ctx.Err())
		}
	}
}
