// Package app wires a loaded pipeline model to the capture subsystem:
// it builds one Capturer per pipeline, offloads it the requested number
// of times on the simulated runtime, and reports wall time plus the
// computed lane distribution.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/SamuelMarks/taskflow/internal/config"
	"github.com/SamuelMarks/taskflow/internal/ctxlog"
)

// Config holds everything an App needs to run.
type Config struct {
	PipelinePath string
	// Lanes overrides the per-pipeline lane pool size when positive.
	Lanes int
	// Repeats overrides the per-pipeline repeat count when positive.
	Repeats   int
	LogFormat string
	LogLevel  string
}

// App encapsulates the runner's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	model  *config.Model
	cfg    *Config
}

// New loads the pipeline file and returns a ready-to-run App with its
// own isolated logger.
func New(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	model, err := config.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("app: loading configuration: %w", err)
	}
	logger.Debug("Configuration loaded.", "pipelines", len(model.Pipelines))

	return &App{
		outW:   outW,
		logger: logger,
		model:  model,
		cfg:    cfg,
	}, nil
}

// newLogger creates and configures a new slog.Logger instance. It does
// not set the global logger, allowing for isolated logger instances.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}
