// Package backoff provides the retry schedule workers use when the remote
// collector reports a transient failure: delays grow polynomially with the
// attempt number and then plateau at a ceiling.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
)

// ErrExhausted is returned by Retry when every delay in the schedule was used
// without the operation succeeding.
var ErrExhausted = errors.New("retry attempts exhausted")

// Defaults matching the collector sender's historical schedule.
const (
	DefaultMaxAttempts = 20
	DefaultTaperPoint  = 20
	DefaultExponent    = 1.4
)

// Sequence yields maxAttempts-1 delays. The delay for attempt c (1-based) is
// floor(c^exponent), clamped to taperPoint once the power exceeds it.
// Each range over the returned sequence starts again from attempt 1.
func Sequence(maxAttempts int, taperPoint, exponent float64) iter.Seq[int] {
	return func(yield func(int) bool) {
		for c := 1; c < maxAttempts; c++ {
			p := math.Pow(float64(c), exponent)
			if p > taperPoint {
				p = taperPoint
			}
			if !yield(int(p)) {
				return
			}
		}
	}
}

// Policy binds a Sequence to a time unit and drives retries.
type Policy struct {
	MaxAttempts int
	TaperPoint  float64
	Exponent    float64
	Unit        time.Duration

	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the standard schedule in seconds.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		TaperPoint:  DefaultTaperPoint,
		Exponent:    DefaultExponent,
		Unit:        time.Second,
	}
}

// Delays returns the policy's schedule as durations.
func (p Policy) Delays() iter.Seq[time.Duration] {
	return func(yield func(time.Duration) bool) {
		for n := range Sequence(p.MaxAttempts, p.TaperPoint, p.Exponent) {
			if !yield(time.Duration(n) * p.Unit) {
				return
			}
		}
	}
}

// Retry calls op once per delay in the schedule. Success or an error that
// retriable rejects ends the loop immediately; a retriable error sleeps for the
// current delay before the next attempt. Running out of delays returns
// ErrExhausted wrapping the last error.
func (p Policy) Retry(ctx context.Context, op func(attempt int) error, retriable func(error) bool) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	attempt := 0
	for d := range p.Delays() {
		attempt++
		err := op(attempt)
		if err == nil {
			return nil
		}
		if retriable == nil || !retriable(err) {
			return err
		}
		lastErr = err
		if err := sleep(ctx, d); err != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
		}
	}
	if lastErr == nil {
		return fmt.Errorf("%w: schedule allows no attempts", ErrExhausted)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
