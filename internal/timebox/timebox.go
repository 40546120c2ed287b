// Package timebox bounds how long a caller waits on a remote call.
//
// Run races an operation against a timer. When the timer wins the caller gets
// a *TimeoutError and moves on; the operation itself keeps running with the
// caller's context and its eventual result is dropped. Operations passed to
// Run must therefore be safe to abandon: reads, not writes.
package timebox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any *TimeoutError via errors.Is.
var ErrTimeout = errors.New("call timed out")

// TimeoutError reports which labelled call exceeded its deadline.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Label, e.After)
}

// Is makes errors.Is(err, ErrTimeout) true for every TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Run executes op and returns its result, or a *TimeoutError if op has not
// returned within d. A non-positive d disables the timer. If ctx ends first,
// ctx.Err() is returned.
func Run[T any](ctx context.Context, d time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	type result struct {
		val T
		err error
	}
	// Buffered so an abandoned op can always deliver and exit.
	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		return zero, &TimeoutError{Label: label, After: d}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
