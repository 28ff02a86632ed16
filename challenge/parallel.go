package challenge

import (
	"bytes"
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var errSolved = errors.New("solved")

// SolveParallel splits the counter search between `workers` goroutines.
//
// Worker i of n starts i increments past the current counter and then tries every n-th
// value, each on its own clone. The first solution is written back into c and stops the
// other workers. If ctx is done (or every worker exhausts the counter space) false is
// returned and c holds the least advanced worker's counter: every value before it has been
// tried, so a later call resumes without skipping any. workers <= 0 uses one worker per CPU.
func SolveParallel(ctx context.Context, c *Challenge, workers int) bool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers == 1 {
		return c.Solve(ctx)
	}

	found := make(chan []byte, 1)
	reached := make([][]byte, workers)
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := c.Clone()
		offset := i
		eg.Go(func() error {
			defer func() { reached[offset] = worker.counter }()
			if offset > 0 && !worker.advance(offset) {
				return nil
			}
			if solveStrided(ctx, worker, workers) {
				select {
				case found <- worker.counter:
					return errSolved
				default:
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	select {
	case counter := <-found:
		c.counter = counter
		return true
	default:
	}

	least := reached[0]
	for _, counter := range reached[1:] {
		if counterLess(counter, least) {
			least = counter
		}
	}
	c.counter = least
	return false
}

// counterLess orders counters as Increment produces them: shorter first, then bytewise.
func counterLess(a, b []byte) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

func solveStrided(ctx context.Context, c *Challenge, stride int) bool {
	for {
		digest := c.Hash()
		if Satisfies(c.bits, digest[:]) {
			return true
		}
		if !c.advance(stride) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		default:
		}
	}
}
