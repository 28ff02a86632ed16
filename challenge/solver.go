package challenge

import (
	"context"
	"math"
	"time"

	"golang.org/x/exp/slices"
)

// NoTimeout makes SolveTimeout search without a time bound.
// A zero duration is never an immediate timeout: to try a single value, call Solve
// with a context that is already done.
const NoTimeout time.Duration = 0

// Increment advances counter to the next value of the search sequence.
//
// The last byte that is not 0xff is incremented. If every byte is 0xff (or the counter
// is empty) a zero byte is appended instead, so the sequence goes
// [] -> [0] -> ... -> [255] -> [255 0] -> ... -> [255 255] -> [255 255 0].
// Trailing 0xff bytes are never carried. The returned slice may share counter's backing array.
func Increment(counter []byte) []byte {
	for i := len(counter) - 1; i >= 0; i-- {
		if counter[i] == math.MaxUint8 {
			continue
		}
		counter[i]++
		return counter
	}
	return append(counter, 0)
}

// Solve searches for a counter value making the challenge's digest satisfy its difficulty.
//
// It returns true with the winning counter in place, or false once ctx is done or the
// counter would outgrow MaxCounterSize. On false the counter keeps the last value tried
// and a subsequent call resumes from it.
func (c *Challenge) Solve(ctx context.Context) bool {
	for {
		digest := c.Hash()
		if Satisfies(c.bits, digest[:]) {
			return true
		}
		if !c.advance(1) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
}

// SolveTimeout is Solve bounded by a wall-clock timeout.
// A zero timeout (NoTimeout) means unbounded: the search runs until a solution is found
// or the counter space is exhausted.
func (c *Challenge) SolveTimeout(timeout time.Duration) bool {
	if timeout == NoTimeout {
		return c.Solve(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Solve(ctx)
}

// advance increments the counter `steps` times.
// It reports false, leaving the counter untouched, if that would exceed MaxCounterSize.
func (c *Challenge) advance(steps int) bool {
	next := c.counter
	if steps > 1 {
		next = slices.Clone(next)
	}
	for i := 0; i < steps; i++ {
		if len(next) == MaxCounterSize && isSaturated(next) {
			return false
		}
		next = Increment(next)
	}
	c.counter = next
	return true
}

func isSaturated(counter []byte) bool {
	for _, b := range counter {
		if b != math.MaxUint8 {
			return false
		}
	}
	return true
}
