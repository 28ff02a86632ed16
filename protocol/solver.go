package protocol

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/hshs/challenge"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
)

// Solver solves encoded challenges received from an issuer.
type Solver struct {
	cfg     SolverConfig
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewSolver(cfg SolverConfig, opts ...OptionFunc) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Solver{
		cfg:     cfg,
		metrics: o.metrics,
		clock:   o.clock,
	}, nil
}

// Solve decodes the challenge, searches for a solution and returns the solved encoding.
//
// Running out of time (the configured timeout or ctx) is not an error: the returned bool is
// false and the returned encoding holds the counter reached so far, so solving can be
// resumed by passing it back in.
func (s *Solver) Solve(ctx context.Context, encoded []byte) ([]byte, bool, error) {
	c, err := challenge.Decode(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("decoding challenge: %w", err)
	}
	logger := logging.FromContext(ctx).With(zap.Uint16("bits", c.Bits()))

	if s.cfg.Timeout != challenge.NoTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := s.clock()
	solved := challenge.SolveParallel(ctx, c, s.cfg.Workers)
	took := s.clock().Sub(start)
	counter := c.Counter()
	s.metrics.Solved(solved, took, len(counter))

	if solved {
		logger.Debug("challenge solved", zap.Duration("took", took), zap.Int("counter_size", len(counter)))
	} else {
		logger.Info("gave up solving challenge", zap.Duration("took", took), zap.Int("counter_size", len(counter)))
	}
	return c.Encode(), solved, nil
}
