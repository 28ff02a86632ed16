package protocol_test

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/exp/slices"

	"github.com/spacemeshos/hshs/challenge"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
	"github.com/spacemeshos/hshs/protocol"
	"github.com/spacemeshos/hshs/signing"
)

type setup struct {
	issuer   *protocol.Issuer
	solver   *protocol.Solver
	verifier protocol.Verifier
}

func newSetup(t testing.TB, bits uint16, opts ...protocol.OptionFunc) setup {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	issuerCfg := protocol.DefaultIssuerConfig()
	issuerCfg.Bits = bits
	issuer, err := protocol.NewIssuer(issuerCfg, key, opts...)
	require.NoError(t, err)

	solver, err := protocol.NewSolver(protocol.DefaultSolverConfig(), opts...)
	require.NoError(t, err)

	verifier, err := protocol.NewVerifier(protocol.DefaultVerifierConfig(), issuer.PubKey(), opts...)
	require.NoError(t, err)

	return setup{issuer: issuer, solver: solver, verifier: verifier}
}

func TestIssueSolveVerify(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 10)

	ticket, err := s.issuer.Issue(ctx, []byte("memo"))
	r.NoError(err)
	r.NotEmpty(ticket.ID)

	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	c, err := s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
	r.EqualValues(10, c.Bits())
	r.Equal([]byte("memo"), c.Metadata())
	r.True(c.VerifyHash())
	_, hasDeadline := c.Deadline()
	r.True(hasDeadline)
}

func TestVerifyRejectsReplay(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 6)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.ErrorIs(err, protocol.ErrReplayed)
}

func TestVerifyFailureDoesNotBurnChallenge(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 6)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	badSig := slices.Clone(ticket.Signature)
	badSig[0] ^= 0xff
	_, err = s.verifier.Verify(ctx, solved, badSig)
	r.ErrorIs(err, signing.ErrSignatureInvalid)

	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 6)
	other := newSetup(t, 6)

	ticket, err := other.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := other.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.ErrorIs(err, signing.ErrSignatureInvalid)
}

func TestVerifyRejectsUnsolved(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 24)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)

	c, err := challenge.Decode(ticket.Challenge)
	r.NoError(err)
	if c.VerifyHash() {
		t.Skip("fresh challenge happens to be solved")
	}
	_, err = s.verifier.Verify(ctx, ticket.Challenge, ticket.Signature)
	r.ErrorIs(err, challenge.ErrInsufficientWork)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	t.Parallel()
	s := newSetup(t, 6)
	_, err := s.verifier.Verify(context.Background(), []byte("garbage"), nil)
	require.ErrorIs(t, err, challenge.ErrMalformedEncoding)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()

	now := time.Now()
	s := newSetup(t, 6, protocol.WithClock(func() time.Time { return now }))
	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	late, err := protocol.NewVerifier(
		protocol.DefaultVerifierConfig(),
		s.issuer.PubKey(),
		protocol.WithClock(func() time.Time { return now.Add(time.Hour) }),
	)
	r.NoError(err)
	_, err = late.Verify(ctx, solved, ticket.Signature)
	r.ErrorIs(err, challenge.ErrExpired)

	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
}

func TestVerifyRejectsLowDifficulty(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 4)

	cfg := protocol.DefaultVerifierConfig()
	cfg.MinBits = 8
	strict, err := protocol.NewVerifier(cfg, s.issuer.PubKey())
	r.NoError(err)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)

	_, err = strict.Verify(ctx, solved, ticket.Signature)
	r.ErrorIs(err, protocol.ErrDifficultyMismatch)
}

func TestSolverTimeout(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 32)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)

	cfg := protocol.DefaultSolverConfig()
	cfg.Timeout = 5 * time.Millisecond
	solver, err := protocol.NewSolver(cfg)
	r.NoError(err)

	partial, ok, err := solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.False(ok)

	c, err := challenge.Decode(partial)
	r.NoError(err)
	r.NotEmpty(c.Counter())
	// the partial work is still covered by the issuer signature
	_, err = signing.Verify(c, ticket.Signature, s.issuer.PubKey())
	r.NoError(err)
}

func TestParallelSolverTimeoutKeepsProgress(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 32)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)

	cfg := protocol.DefaultSolverConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Workers = 4
	solver, err := protocol.NewSolver(cfg)
	r.NoError(err)

	partial, ok, err := solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.False(ok)
	r.NotEqual(ticket.Challenge, partial)

	c, err := challenge.Decode(partial)
	r.NoError(err)
	r.NotEmpty(c.Counter())
	_, err = signing.Verify(c, ticket.Signature, s.issuer.PubKey())
	r.NoError(err)
}

func TestSolverRejectsMalformed(t *testing.T) {
	t.Parallel()
	s := newSetup(t, 6)
	_, _, err := s.solver.Solve(context.Background(), []byte{1, 2, 3})
	require.ErrorIs(t, err, challenge.ErrMalformedEncoding)
}

func TestParallelSolver(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	s := newSetup(t, 10)

	cfg := protocol.DefaultSolverConfig()
	cfg.Workers = 4
	solver, err := protocol.NewSolver(cfg)
	r.NoError(err)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)
	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
}

func TestLogging(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	core, logs := observer.New(zap.DebugLevel)
	ctx := logging.NewContext(context.Background(), zap.New(core))
	s := newSetup(t, 6)

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, _, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.Error(err)

	r.Equal(1, logs.FilterMessage("issued challenge").Len())
	r.Equal(1, logs.FilterMessage("challenge solved").Len())
	r.Equal(1, logs.FilterMessage("accepted challenge").Len())
	rejected := logs.FilterMessage("rejected challenge").All()
	r.Len(rejected, 1)
	r.Equal("replayed", rejected[0].ContextMap()["result"])
}

func TestNewWithInvalidKeys(t *testing.T) {
	t.Parallel()

	_, err := protocol.NewIssuer(protocol.DefaultIssuerConfig(), ed25519.PrivateKey{1, 2, 3})
	require.ErrorIs(t, err, protocol.ErrInvalidKey)

	_, err = protocol.NewVerifier(protocol.DefaultVerifierConfig(), ed25519.PublicKey{1, 2, 3})
	require.ErrorIs(t, err, protocol.ErrInvalidKey)
}

func TestMetricsAreRecorded(t *testing.T) {
	t.Parallel()
	r := require.New(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := newSetup(t, 6, protocol.WithMetrics(metrics.New(reg)))

	ticket, err := s.issuer.Issue(ctx, nil)
	r.NoError(err)
	solved, ok, err := s.solver.Solve(ctx, ticket.Challenge)
	r.NoError(err)
	r.True(ok)
	_, err = s.verifier.Verify(ctx, solved, ticket.Signature)
	r.NoError(err)
	_, err = s.verifier.Verify(ctx, []byte("garbage"), nil)
	r.Error(err)

	r.NoError(testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP hshs_issuer_challenges_total Number of issued challenges
# TYPE hshs_issuer_challenges_total counter
hshs_issuer_challenges_total{bits="6"} 1
# HELP hshs_verifier_verifications_total Number of verified challenges by result
# TYPE hshs_verifier_verifications_total counter
hshs_verifier_verifications_total{result="malformed"} 1
hshs_verifier_verifications_total{result="valid"} 1
`), "hshs_issuer_challenges_total", "hshs_verifier_verifications_total"))
}
