package condition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T, clock Clock, mutate ...func(*Options)) *Evaluator {
	t.Helper()
	opts := Options{Timeout: 2 * time.Second, Interval: 500 * time.Millisecond, Clock: clock}
	for _, m := range mutate {
		m(&opts)
	}
	return New(opts, zaptest.NewLogger(t))
}

func TestWait_SucceedsOnThirdInvocation(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)

	calls := 0
	res, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		calls++
		if calls == 3 {
			return Success("third"), nil
		}
		return Failure(calls), nil
	})

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "third", res.Payload)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clock.Sleeps())
}

func TestWait_TimesOutAfterConfiguredDuration(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)

	calls := 0
	res, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		calls++
		return Failure([]string{"actual", "expected"}), nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2*time.Second, timeout.Timeout)
	assert.Equal(t, calls, timeout.Attempts)
	assert.Equal(t, []string{"actual", "expected"}, timeout.Last.Payload)
	assert.NoError(t, timeout.LastErr)
	assert.Equal(t, timeout.Last, res)

	// Exactly the configured timeout elapsed on the fake clock.
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, 5, calls)
}

func TestWait_LastSleepIsClampedToDeadline(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock, func(o *Options) {
		o.Timeout = time.Second
		o.Interval = 400 * time.Millisecond
	})

	_, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		return Failure(nil), nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 400 * time.Millisecond, 200 * time.Millisecond}, clock.Sleeps())
}

func TestWait_ToleratesPredicateErrors(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)
	notWritten := errors.New("payload not yet written")

	calls := 0
	res, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		calls++
		if calls < 3 {
			return Result{}, notWritten
		}
		return Success("written"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "written", res.Payload)
}

func TestWait_TimeoutCarriesLastError(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)
	boom := errors.New("connection refused")

	_, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		return Result{}, boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWait_StrictErrorsStopImmediately(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock, func(o *Options) { o.StrictErrors = true })
	boom := errors.New("boom")

	calls := 0
	_, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		calls++
		return Result{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestWait_PermanentErrorStopsImmediately(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)
	fatal := errors.New("scenario misconfigured")

	calls := 0
	_, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		calls++
		return Result{}, Permanent(fatal)
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestWait_ContextCancellation(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := ev.Wait(ctx, func(ctx context.Context) (Result, error) {
		calls++
		cancel()
		return Failure("pending"), nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWait_RealClock(t *testing.T) {
	ev := New(Options{Timeout: 50 * time.Millisecond, Interval: 5 * time.Millisecond}, nil)

	start := time.Now()
	_, err := ev.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		return Failure(nil), nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitFunc(t *testing.T) {
	clock := NewFakeClock(epoch)
	ev := newTestEvaluator(t, clock)

	calls := 0
	err := ev.WaitFunc(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithOptions(t *testing.T) {
	clock := NewFakeClock(epoch)
	base := newTestEvaluator(t, clock)
	longer := base.WithOptions(func(o *Options) { o.Timeout = 10 * time.Second })

	_, err := longer.Wait(context.Background(), func(ctx context.Context) (Result, error) {
		return Failure(nil), nil
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 10*time.Second, timeout.Timeout)
	assert.Equal(t, 2*time.Second, base.opts.Timeout)
}
