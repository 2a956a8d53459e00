// Package condition polls a predicate against live browser or server state
// until it holds or a timeout elapses.
//
// A predicate reports a Result: a success flag plus a diagnostic payload. The
// payload of the last failed evaluation travels with the timeout error so that
// callers can report what was actually observed instead of a bare timeout.
package condition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of one predicate evaluation.
type Result struct {
	OK      bool
	Payload interface{}
}

// Success returns a satisfied Result carrying payload.
func Success(payload interface{}) Result { return Result{OK: true, Payload: payload} }

// Failure returns an unsatisfied Result carrying payload.
func Failure(payload interface{}) Result { return Result{OK: false, Payload: payload} }

// Predicate evaluates the condition once. A non-nil error is treated as
// "not yet satisfied" unless the evaluator is strict or the error is Permanent.
type Predicate func(ctx context.Context) (Result, error)

// ErrTimeout is matched by every TimeoutError.
var ErrTimeout = errors.New("condition not satisfied before timeout")

// TimeoutError reports a predicate that never succeeded.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	// Last is the result of the last evaluation that returned without error.
	Last Result
	// LastErr is the error of the final evaluation, if it failed.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("condition not satisfied after %s (%d attempts)", e.Timeout, e.Attempts)
	if e.LastErr != nil {
		return msg + ": last error: " + e.LastErr.Error()
	}
	if e.Last.Payload != nil {
		return fmt.Sprintf("%s: last payload: %v", msg, e.Last.Payload)
	}
	return msg
}

func (e *TimeoutError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.LastErr}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable: Wait returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Options configures an Evaluator.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	// StrictErrors makes any predicate error terminate the wait.
	StrictErrors bool
	Clock        Clock
}

// Evaluator runs predicates until they succeed. It holds no state between
// calls and is safe for concurrent use.
type Evaluator struct {
	opts   Options
	logger *zap.Logger
}

// New creates an Evaluator. A nil clock means real time.
func New(opts Options, logger *zap.Logger) *Evaluator {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = opts.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{opts: opts, logger: logger.Named("condition")}
}

// WithOptions returns a copy of the evaluator using different timing.
func (e *Evaluator) WithOptions(mutate func(*Options)) *Evaluator {
	opts := e.opts
	mutate(&opts)
	return &Evaluator{opts: opts, logger: e.logger}
}

// Wait evaluates pred until it reports success and returns that Result.
// The predicate always runs at least once. If the timeout elapses first a
// *TimeoutError is returned; if ctx is done first the context error is
// returned wrapped together with the last observation.
func (e *Evaluator) Wait(ctx context.Context, pred Predicate) (Result, error) {
	clock := e.opts.Clock
	deadline := clock.Now().Add(e.opts.Timeout)

	var (
		last     Result
		lastErr  error
		attempts int
	)

	for {
		attempts++
		res, err := pred(ctx)
		switch {
		case err != nil:
			var perm *permanentError
			if errors.As(err, &perm) {
				return res, perm.err
			}
			if e.opts.StrictErrors {
				return res, err
			}
			lastErr = err
			e.logger.Debug("Predicate failed; retrying.", zap.Int("attempt", attempts), zap.Error(err))
		case res.OK:
			return res, nil
		default:
			last = res
			lastErr = nil
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return last, &TimeoutError{
				Timeout:  e.opts.Timeout,
				Attempts: attempts,
				Last:     last,
				LastErr:  lastErr,
			}
		}

		wait := e.opts.Interval
		if wait > remaining {
			wait = remaining
		}

		if ctx.Err() != nil {
			return last, fmt.Errorf("waiting for condition: %w", errors.Join(ctx.Err(), lastErr))
		}
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("waiting for condition: %w", errors.Join(ctx.Err(), lastErr))
		case <-clock.After(wait):
		}
	}
}

// WaitFunc is a shorthand for callers that only need a boolean predicate.
func (e *Evaluator) WaitFunc(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	_, err := e.Wait(ctx, func(ctx context.Context) (Result, error) {
		ok, err := check(ctx)
		return Result{OK: ok}, err
	})
	return err
}
