package observability

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig describes where workflow logs go
type LogConfig struct {
	// File receives every log line in append mode; empty disables the file sink
	File string
	// Level is one of debug, info, warn or error
	Level string
	// Stdout mirrors the log lines on standard output
	Stdout bool
	// Development switches to zap's human readable console encoding
	Development bool
}

// NewLogger builds a zap-backed logr.Logger from cfg. The returned sync func
// flushes buffered entries and should be deferred by the caller.
func NewLogger(cfg LogConfig) (logr.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Sampling = nil

	var outputs []string
	if cfg.File != "" {
		outputs = append(outputs, cfg.File)
	}
	if cfg.Stdout {
		outputs = append(outputs, "stdout")
	}
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	zcfg.OutputPaths = outputs
	zcfg.ErrorOutputPaths = []string{"stderr"}

	zapLog, err := zcfg.Build()
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return zapr.NewLogger(zapLog), zapLog.Sync, nil
}
