package protocol

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/spacemeshos/hshs/challenge"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
	"github.com/spacemeshos/hshs/signing"
)

var (
	ErrInvalidKey         = errors.New("invalid key")
	ErrDifficultyMismatch = errors.New("challenge difficulty below minimum")
	ErrReplayed           = errors.New("challenge already redeemed")
)

type Verifier interface {
	// Verify checks a solved challenge returned by a solver together with the
	// signature the issuer made over its unsolved form.
	Verify(ctx context.Context, solved, signature []byte) (*challenge.Challenge, error)
}

// verifier checks the work, the deadline and the issuer signature and then remembers
// the challenge so that it can't be redeemed twice.
type verifier struct {
	cfg     VerifierConfig
	pubkey  ed25519.PublicKey
	spent   *lru.Cache
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewVerifier(cfg VerifierConfig, pubkey ed25519.PublicKey, opts ...OptionFunc) (Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(pubkey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, signing.ErrInvalidPubkeyLen)
	}
	spent, err := lru.New(cfg.ReplayWindow)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &verifier{
		cfg:     cfg,
		pubkey:  pubkey,
		spent:   spent,
		metrics: o.metrics,
		clock:   o.clock,
	}, nil
}

// Verify implements Verifier.
func (v *verifier) Verify(ctx context.Context, solved, signature []byte) (*challenge.Challenge, error) {
	logger := logging.FromContext(ctx)

	c, err := v.verify(solved, signature)
	result := resultOf(err)
	v.metrics.Verified(result)
	if err != nil {
		logger.Debug("rejected challenge", zap.String("result", result), zap.Error(err))
		return nil, err
	}
	logger.Debug("accepted challenge", zap.Object("challenge", c))
	return c, nil
}

func (v *verifier) verify(solved, signature []byte) (*challenge.Challenge, error) {
	c, err := challenge.Decode(solved)
	if err != nil {
		return nil, err
	}
	if c.Bits() < v.cfg.MinBits {
		return nil, fmt.Errorf("%w: %d < %d", ErrDifficultyMismatch, c.Bits(), v.cfg.MinBits)
	}
	if err := c.Validate(v.clock()); err != nil {
		return nil, err
	}
	if _, err := signing.Verify(c, signature, v.pubkey); err != nil {
		return nil, err
	}
	// Only fully valid challenges are remembered, a failed attempt doesn't burn the challenge.
	if seen, _ := v.spent.ContainsOrAdd(c.Randomness(), struct{}{}); seen {
		return nil, ErrReplayed
	}
	return c, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultValid
	case errors.Is(err, challenge.ErrMalformedEncoding):
		return metrics.ResultMalformed
	case errors.Is(err, challenge.ErrExpired):
		return metrics.ResultExpired
	case errors.Is(err, challenge.ErrInsufficientWork), errors.Is(err, ErrDifficultyMismatch):
		return metrics.ResultInvalidWork
	case errors.Is(err, signing.ErrSignatureInvalid):
		return metrics.ResultBadSig
	case errors.Is(err, ErrReplayed):
		return metrics.ResultReplayed
	default:
		return metrics.ResultOther
	}
}
