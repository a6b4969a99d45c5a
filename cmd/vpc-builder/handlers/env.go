// Package handlers implements the vpc-builder commands.
//
// Each handler loads the configuration, builds a logger and the service
// clients, runs one workflow and prints a short summary. Factory variables
// can be replaced in tests to run the handlers against the in-memory mocks.
package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/johnlam90/vpc-builder/pkg/config"
	"github.com/johnlam90/vpc-builder/pkg/lib"
	"github.com/johnlam90/vpc-builder/pkg/observability"
)

// GlobalOptions are the flags shared by every command
type GlobalOptions struct {
	Region      string
	LogFile     string
	LogLevel    string
	MetricsFile string
	Stdout      bool
}

// environment is what one command invocation runs with
type environment struct {
	builder *lib.VPCBuilder
	logger  logr.Logger
	sync    func() error
	metrics string
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.LoadBuilderConfig

	newBuilder = lib.NewVPCBuilderWithConfig

	newLogger = observability.NewLogger
)

// newEnvironment loads the configuration, applies the global flags and
// creates the service clients.
func newEnvironment(ctx context.Context, opts GlobalOptions) (*environment, error) {
	cfg, warnings, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.Region != "" && opts.Region != cfg.Region {
		cfg.Region = opts.Region
		cfg.Endpoints = config.Endpoints{}
		if warnings, err = cfg.LoadEndpoints(); err != nil {
			return nil, fmt.Errorf("failed to load endpoints for region %s: %w", opts.Region, err)
		}
	}
	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, sync, err := newLogger(observability.LogConfig{
		File:   cfg.LogFile,
		Level:  cfg.LogLevel,
		Stdout: opts.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger = logger.WithName("vpc-builder")

	for _, w := range warnings {
		logger.Info("Configuration warning", "warning", string(w))
	}

	builder, err := newBuilder(ctx, cfg, logger)
	if err != nil {
		_ = sync()
		return nil, err
	}

	return &environment{
		builder: builder,
		logger:  logger,
		sync:    sync,
		metrics: opts.MetricsFile,
	}, nil
}

// close writes the metrics file when one was requested and flushes the logger
func (e *environment) close() {
	if e.metrics != "" {
		if err := observability.WriteTextfile(e.metrics); err != nil {
			e.logger.Error(err, "Failed to write metrics file", "path", e.metrics)
		}
	}
	if e.sync != nil {
		_ = e.sync()
	}
}
