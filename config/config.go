// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/hshs/logging"
	"github.com/spacemeshos/hshs/protocol"
)

const (
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
)

// Config defines the configuration options for hshs.
//
// Options are read from an optional ini file first and
// then overridden by command line flags.
type Config struct {
	ConfigFile     string `short:"c" long:"configfile"     description:"Path to configuration file"`
	DebugLog       bool   `long:"debuglog"                 description:"Enable debug logs"`
	JSONLog        bool   `long:"jsonlog"                  description:"Whether to log in JSON format"`
	LogFile        string `long:"logfile"                  description:"Also write debug logs to this file"`
	MaxLogFiles    int    `long:"maxlogfiles"              description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize"           description:"Maximum logfile size in MB"`
	Metrics        bool   `long:"metrics"                  description:"Print collected metrics to stderr on exit"`

	Issuer   *protocol.IssuerConfig   `group:"Issuer"`
	Solver   *protocol.SolverConfig   `group:"Solver"`
	Verifier *protocol.VerifierConfig `group:"Verifier"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	issuer := protocol.DefaultIssuerConfig()
	solver := protocol.DefaultSolverConfig()
	verifier := protocol.DefaultVerifierConfig()
	return &Config{
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		Issuer:         &issuer,
		Solver:         &solver,
		Verifier:       &verifier,
	}
}

// ReadConfigFile reads values from cfg.ConfigFile, if set.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	cfg.ConfigFile = cleanAndExpandPath(cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.ConfigFile, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration, reporting every problem found.
func (cfg *Config) Validate() error {
	var result *multierror.Error
	if cfg.MaxLogFiles < 0 {
		result = multierror.Append(result, errors.New("maxlogfiles must not be negative"))
	}
	if cfg.MaxLogFileSize <= 0 {
		result = multierror.Append(result, errors.New("maxlogfilesize must be positive"))
	}
	if err := cfg.Issuer.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := cfg.Solver.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := cfg.Verifier.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Logging translates the log options into a logging.Config.
func (cfg *Config) Logging() logging.Config {
	var level zapcore.Level = zap.InfoLevel
	if cfg.DebugLog {
		level = zap.DebugLevel
	}
	return logging.Config{
		Level:       level,
		JSON:        cfg.JSONLog,
		File:        cleanAndExpandPath(cfg.LogFile),
		MaxFileSize: cfg.MaxLogFileSize,
		MaxFiles:    cfg.MaxLogFiles,
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
