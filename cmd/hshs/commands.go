package main

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/spacemeshos/hshs/challenge"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
	"github.com/spacemeshos/hshs/protocol"
	"github.com/spacemeshos/hshs/signing"
)

var errNotSolved = errors.New("challenge not solved")

func addCommands(parser *flags.Parser, a *app) error {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{
			"issue", "Issue a new challenge",
			"Issue a new challenge and print it base64 encoded. With --seed the challenge is signed " +
				"and the signature and public key are printed on the following lines.",
			&issueCommand{app: a},
		},
		{
			"solve", "Solve a challenge",
			"Read a base64 encoded challenge from the argument or stdin and print the solved challenge.",
			&solveCommand{app: a},
		},
		{
			"verify", "Verify a solved challenge",
			"Check the work and the deadline of a base64 encoded challenge. " +
				"With --pubkey and --signature the issuer signature is checked too.",
			&verifyCommand{app: a},
		},
		{
			"inspect", "Print the fields of a challenge",
			"Decode a base64 encoded challenge and print its fields.",
			&inspectCommand{app: a},
		},
		{
			"demo", "Run an issue, solve and verify round",
			"Issue a challenge signed with an ephemeral key, solve it and verify the solution.",
			&demoCommand{app: a},
		},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return fmt.Errorf("adding %s command: %w", c.name, err)
		}
	}
	return nil
}

func (a *app) options() []protocol.OptionFunc {
	return []protocol.OptionFunc{protocol.WithMetrics(a.metrics)}
}

// input returns the decoded first argument or, without arguments, the first line of stdin.
func (a *app) input(args []string) ([]byte, error) {
	var text string
	if len(args) > 0 {
		text = args[0]
	} else {
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		text = line
	}
	data, err := decodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}
	return data, nil
}

func decodeBase64(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(text))
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

type issueCommand struct {
	app *app

	Metadata string `long:"metadata" description:"Opaque metadata attached to the challenge"`
	Seed     string `long:"seed"     description:"Base64 ed25519 seed used to sign the challenge"`
}

func (cmd *issueCommand) Execute(_ []string) error {
	var metadata []byte
	if cmd.Metadata != "" {
		metadata = []byte(cmd.Metadata)
	}

	if cmd.Seed == "" {
		var opts []challenge.OptionFunc
		if cmd.app.cfg.Issuer.Deadline > 0 {
			opts = append(opts, challenge.WithDeadline(cmd.app.cfg.Issuer.Deadline))
		}
		if metadata != nil {
			opts = append(opts, challenge.WithMetadata(metadata))
		}
		c, err := challenge.New(cmd.app.cfg.Issuer.Bits, opts...)
		if err != nil {
			return err
		}
		cmd.app.metrics.Issued(fmt.Sprint(c.Bits()))
		logging.FromContext(cmd.app.ctx).Info("issued unsigned challenge", zap.Object("challenge", c))
		_, err = fmt.Fprintln(cmd.app.stdout, encodeBase64(c.Encode()))
		return err
	}

	seed, err := decodeBase64(cmd.Seed)
	if err != nil || len(seed) != ed25519.SeedSize {
		return fmt.Errorf("%w: seed must be %d base64 encoded bytes", protocol.ErrInvalidKey, ed25519.SeedSize)
	}
	issuer, err := protocol.NewIssuer(*cmd.app.cfg.Issuer, ed25519.NewKeyFromSeed(seed), cmd.app.options()...)
	if err != nil {
		return err
	}
	ticket, err := issuer.Issue(cmd.app.ctx, metadata)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.app.stdout, "%s\n%s\n%s\n",
		encodeBase64(ticket.Challenge),
		encodeBase64(ticket.Signature),
		encodeBase64(issuer.PubKey()),
	)
	return err
}

type solveCommand struct {
	app *app
}

func (cmd *solveCommand) Execute(args []string) error {
	data, err := cmd.app.input(args)
	if err != nil {
		return err
	}
	solver, err := protocol.NewSolver(*cmd.app.cfg.Solver, cmd.app.options()...)
	if err != nil {
		return err
	}
	solved, ok, err := solver.Solve(cmd.app.ctx, data)
	if err != nil {
		return err
	}
	// The partial result is printed too so that solving can be resumed.
	if _, err := fmt.Fprintln(cmd.app.stdout, encodeBase64(solved)); err != nil {
		return err
	}
	if !ok {
		return errNotSolved
	}
	return nil
}

type verifyCommand struct {
	app *app

	PubKey    string `long:"pubkey"    description:"Base64 ed25519 public key of the issuer"`
	Signature string `long:"signature" description:"Base64 signature handed out with the challenge"`
}

func (cmd *verifyCommand) Execute(args []string) error {
	data, err := cmd.app.input(args)
	if err != nil {
		return err
	}

	if cmd.PubKey == "" && cmd.Signature == "" {
		c, err := challenge.Decode(data)
		if err != nil {
			cmd.app.metrics.Verified(metrics.ResultMalformed)
			return err
		}
		if err := c.Validate(time.Now()); err != nil {
			if errors.Is(err, challenge.ErrExpired) {
				cmd.app.metrics.Verified(metrics.ResultExpired)
			} else {
				cmd.app.metrics.Verified(metrics.ResultInvalidWork)
			}
			return err
		}
		cmd.app.metrics.Verified(metrics.ResultValid)
		_, err = fmt.Fprintln(cmd.app.stdout, "valid")
		return err
	}

	pubkey, err := decodeBase64(cmd.PubKey)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}
	signature, err := decodeBase64(cmd.Signature)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}
	verifier, err := protocol.NewVerifier(*cmd.app.cfg.Verifier, pubkey, cmd.app.options()...)
	if err != nil {
		return err
	}
	if _, err := verifier.Verify(cmd.app.ctx, data, signature); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.app.stdout, "valid")
	return err
}

type inspectCommand struct {
	app *app
}

func (cmd *inspectCommand) Execute(args []string) error {
	data, err := cmd.app.input(args)
	if err != nil {
		return err
	}
	c, err := challenge.Decode(data)
	if err != nil {
		return err
	}

	w := cmd.app.stdout
	fmt.Fprintln(w, c)
	fmt.Fprintf(w, "bits:       %d\n", c.Bits())
	fmt.Fprintf(w, "issued at:  %s\n", c.IssuedAt().Format(time.RFC3339Nano))
	if deadline, ok := c.Deadline(); ok {
		fmt.Fprintf(w, "deadline:   %s\n", deadline.Format(time.RFC3339Nano))
	} else {
		fmt.Fprintln(w, "deadline:   none")
	}
	randomness := c.Randomness()
	fmt.Fprintf(w, "randomness: %x\n", randomness[:])
	fmt.Fprintf(w, "counter:    %x (%d bytes)\n", c.Counter(), len(c.Counter()))
	if metadata := c.Metadata(); metadata != nil {
		fmt.Fprintf(w, "metadata:   %q\n", metadata)
	}
	hash := c.Hash()
	fmt.Fprintf(w, "hash:       %x\n", hash[:])
	fmt.Fprintf(w, "leading:    %d zero bits\n", challenge.LeadingZeroBits(hash[:]))
	_, err = fmt.Fprintf(w, "solved:     %t\n", c.VerifyHash())
	return err
}

type demoCommand struct {
	app *app

	Memo string `long:"memo" default:"abcdefgh1234" description:"Memo carried in the challenge metadata"`
}

func (cmd *demoCommand) Execute(_ []string) error {
	ctx := cmd.app.ctx
	w := cmd.app.stdout

	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	issuer, err := protocol.NewIssuer(*cmd.app.cfg.Issuer, key, cmd.app.options()...)
	if err != nil {
		return err
	}
	solver, err := protocol.NewSolver(*cmd.app.cfg.Solver, cmd.app.options()...)
	if err != nil {
		return err
	}
	verifier, err := protocol.NewVerifier(*cmd.app.cfg.Verifier, issuer.PubKey(), cmd.app.options()...)
	if err != nil {
		return err
	}

	memo := demoMetadata{Version: demoVersion, Memo: cmd.Memo}
	ticket, err := issuer.Issue(ctx, memo.Bytes())
	if err != nil {
		return err
	}
	issued, err := challenge.Decode(ticket.Challenge)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "issued %s\n", issued)
	fmt.Fprintf(w, "issuer key %s\n", signing.Fingerprint(issuer.PubKey()))

	started := time.Now()
	solved, ok, err := solver.Solve(ctx, ticket.Challenge)
	if err != nil {
		return err
	}
	if !ok {
		return errNotSolved
	}
	fmt.Fprintf(w, "solved in %v\n", time.Since(started))

	c, err := verifier.Verify(ctx, solved, ticket.Signature)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "verified %s\n", c)

	received, err := parseDemoMetadata(c.Metadata())
	if err != nil {
		return err
	}
	if received.Version < minDemoVersion {
		return fmt.Errorf("metadata version %d is too old", received.Version)
	}
	if received.Memo != memo.Memo {
		return fmt.Errorf("memo mismatch: got %q, want %q", received.Memo, memo.Memo)
	}
	_, err = fmt.Fprintf(w, "memo %q\ndone\n", received.Memo)
	return err
}
