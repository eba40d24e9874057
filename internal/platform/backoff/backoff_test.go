package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_ImmediateSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	attempts := 0

	err := Poll(context.Background(), clock, Policy{}, func(context.Context) (bool, error) {
		attempts++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPoll_SucceedsAfterRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	attempts := 0
	var sleeps []time.Duration

	errc := make(chan error, 1)
	go func() {
		errc <- Poll(context.Background(), clock, Policy{
			OnWait: func(_ int, sleep time.Duration) { sleeps = append(sleeps, sleep) },
		}, func(context.Context) (bool, error) {
			attempts++
			return attempts == 3, nil
		})
	}()

	// Two sleeps precede the successful third attempt.
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(2 * time.Second)
	}

	require.NoError(t, <-errc)
	assert.Equal(t, 3, attempts)
	require.Len(t, sleeps, 2)
	assert.Equal(t, time.Second, sleeps[0], "log2(2) seconds after the first attempt")
	assert.InDelta(t, 1.585, sleeps[1].Seconds(), 0.01, "log2(3) seconds after the second")
}

func TestPoll_Timeout(t *testing.T) {
	clock := clockwork.NewFakeClock()

	errc := make(chan error, 1)
	go func() {
		// The second sleep (~1.585s) would push past 1.5s, so the poll gives
		// up after having waited out only the first.
		errc <- Poll(context.Background(), clock, Policy{MaxWait: 1500 * time.Millisecond},
			func(context.Context) (bool, error) { return false, nil })
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	err := <-errc
	var timeout *ErrTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, time.Second, timeout.Waited)
}

func TestPoll_CheckErrorPropagates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	boom := errors.New("boom")

	err := Poll(context.Background(), clock, Policy{}, func(context.Context) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestPoll_ContextCancelledDuringSleep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- Poll(ctx, clock, Policy{}, func(context.Context) (bool, error) {
			return false, nil
		})
	}()

	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
}
