// hshs issues, solves and verifies hashcash challenges from the command line.
//
// Challenges travel as base64 text, so the commands can be chained:
//
//	hshs issue --bits 12 | hshs solve | hshs verify
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/spacemeshos/hshs/config"
	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/metrics"
)

func main() {
	// Ctrl+C stops a running solve, the partial result is still printed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every command needs once the global options are parsed.
type app struct {
	cfg      *config.Config
	ctx      context.Context
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	stdin    io.Reader
	stdout   io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Load the config file first so that command line flags override it.
	preCfg := config.DefaultConfig()
	preParser := flags.NewParser(preCfg, flags.PassDoubleDash|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.ConfigFile = preCfg.ConfigFile
	cfg, err := config.ReadConfigFile(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		ctx:      ctx,
		registry: registry,
		metrics:  metrics.New(registry),
		stdin:    stdin,
		stdout:   stdout,
	}

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if err := addCommands(parser, a); err != nil {
		return err
	}

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logCfg := cfg.Logging()
		logCfg.Output = stderr
		logger := logging.New(logCfg).Named("hshs")
		defer func() { _ = logger.Sync() }()
		logger.Debug("configuration",
			zap.Object("issuer", cfg.Issuer),
			zap.Object("solver", cfg.Solver),
			zap.Object("verifier", cfg.Verifier),
		)
		a.ctx = logging.NewContext(ctx, logger)

		err := command.Execute(args)
		if cfg.Metrics {
			if dumpErr := dumpMetrics(stderr, registry); dumpErr != nil {
				logger.Warn("failed to dump metrics", zap.Error(dumpErr))
			}
		}
		return err
	}

	_, err = parser.ParseArgs(args)
	return err
}

func dumpMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
