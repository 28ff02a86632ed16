package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/hshs/challenge"
)

const (
	defaultBits          = 10
	defaultDeadline      = 2 * time.Minute
	defaultSolveTimeout  = challenge.NoTimeout
	defaultReplayWindow  = 100_000
	maxRecommendedBits   = 32
	defaultSolverWorkers = 1
)

var ErrInvalidConfig = errors.New("invalid configuration")

//nolint:lll
type IssuerConfig struct {
	Bits     uint16        `long:"bits"     description:"Number of leading zero bits a solution must have"`
	Deadline time.Duration `long:"deadline" description:"How long an issued challenge stays valid (0 for no deadline)"`
}

func DefaultIssuerConfig() IssuerConfig {
	return IssuerConfig{
		Bits:     defaultBits,
		Deadline: defaultDeadline,
	}
}

func (c IssuerConfig) Validate() error {
	var result *multierror.Error
	if c.Bits > maxRecommendedBits {
		result = multierror.Append(result, fmt.Errorf("%w: bits %d is above %d", ErrInvalidConfig, c.Bits, maxRecommendedBits))
	}
	if c.Deadline < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: negative deadline %v", ErrInvalidConfig, c.Deadline))
	}
	return result.ErrorOrNil()
}

// implement zap.ObjectMarshaler interface.
func (c IssuerConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint16("bits", c.Bits)
	enc.AddDuration("deadline", c.Deadline)
	return nil
}

//nolint:lll
type SolverConfig struct {
	Timeout time.Duration `long:"timeout" description:"Give up solving after this long (0 for no timeout)"`
	Workers int           `long:"workers" description:"Number of solving goroutines (0 for one per CPU)"`
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Timeout: defaultSolveTimeout,
		Workers: defaultSolverWorkers,
	}
}

func (c SolverConfig) Validate() error {
	var result *multierror.Error
	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: negative timeout %v", ErrInvalidConfig, c.Timeout))
	}
	if c.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: negative workers %d", ErrInvalidConfig, c.Workers))
	}
	return result.ErrorOrNil()
}

// implement zap.ObjectMarshaler interface.
func (c SolverConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddDuration("timeout", c.Timeout)
	enc.AddInt("workers", c.Workers)
	return nil
}

//nolint:lll
type VerifierConfig struct {
	MinBits      uint16 `long:"min-bits"      description:"Reject challenges issued with fewer leading zero bits"`
	ReplayWindow int    `long:"replay-window" description:"Number of accepted challenges remembered to reject replays"`
}

func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		MinBits:      0,
		ReplayWindow: defaultReplayWindow,
	}
}

func (c VerifierConfig) Validate() error {
	var result *multierror.Error
	if c.ReplayWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: replay window must be positive, got %d", ErrInvalidConfig, c.ReplayWindow))
	}
	if c.MinBits > maxRecommendedBits {
		result = multierror.Append(result, fmt.Errorf("%w: min bits %d is above %d", ErrInvalidConfig, c.MinBits, maxRecommendedBits))
	}
	return result.ErrorOrNil()
}

// implement zap.ObjectMarshaler interface.
func (c VerifierConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint16("min_bits", c.MinBits)
	enc.AddInt("replay_window", c.ReplayWindow)
	return nil
}
