package protocol

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spacemeshos/hshs/challenge"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
	"github.com/spacemeshos/hshs/signing"
)

// Ticket is what an issuer hands to a solver.
type Ticket struct {
	// ID correlates log entries of the issuer and the verifier. It is not signed.
	ID        uuid.UUID
	Challenge []byte // encoded challenge.Challenge
	Signature []byte // signature of Challenge
}

type options struct {
	metrics *metrics.Metrics
	clock   func() time.Time
}

type OptionFunc func(*options)

// WithMetrics records issuing, solving and verification outcomes.
func WithMetrics(m *metrics.Metrics) OptionFunc {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) OptionFunc {
	return func(o *options) {
		o.clock = clock
	}
}

func applyOptions(opts []OptionFunc) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issuer creates signed challenges.
type Issuer struct {
	cfg     IssuerConfig
	key     ed25519.PrivateKey
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewIssuer(cfg IssuerConfig, key ed25519.PrivateKey, opts ...OptionFunc) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key has %d bytes", ErrInvalidKey, len(key))
	}
	o := applyOptions(opts)
	return &Issuer{
		cfg:     cfg,
		key:     key,
		metrics: o.metrics,
		clock:   o.clock,
	}, nil
}

// PubKey returns the key verifiers need to check tickets from this issuer.
func (i *Issuer) PubKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// Issue creates and signs a new challenge carrying metadata (may be nil).
func (i *Issuer) Issue(ctx context.Context, metadata []byte) (*Ticket, error) {
	opts := []challenge.OptionFunc{challenge.WithClock(i.clock)}
	if i.cfg.Deadline > 0 {
		opts = append(opts, challenge.WithDeadline(i.cfg.Deadline))
	}
	if metadata != nil {
		opts = append(opts, challenge.WithMetadata(metadata))
	}
	c, err := challenge.New(i.cfg.Bits, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	signed, err := signing.Sign(c, i.key)
	if err != nil {
		return nil, err
	}

	ticket := &Ticket{
		ID:        uuid.New(),
		Challenge: c.Encode(),
		Signature: signed.Signature(),
	}
	logging.FromContext(ctx).Debug("issued challenge",
		zap.Stringer("ticket", ticket.ID),
		zap.Object("challenge", c),
		zap.String("issuer", signing.Fingerprint(i.PubKey())),
	)
	i.metrics.Issued(strconv.Itoa(int(c.Bits())))
	return ticket, nil
}
