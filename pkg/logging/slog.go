// Package logging configures the structured logger shared by every CLEO
// subsystem. All components log through one *slog.Logger, tagged with the
// component name, so a single cleo.log sink (spec.md §6) interleaves
// everything in causal order.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes where and how logs are written.
type Config struct {
	Level  string   `yaml:"level"`  // debug, info, warn, error
	Format string   `yaml:"format"` // json, text
	Output string   `yaml:"output"` // stdout, stderr, file
	File   *LogFile `yaml:"file,omitempty"`
}

// LogFile configures rotation for the file output mode.
type LogFile struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	MaxAgeDay int    `yaml:"max_age_days"`
	Compress  bool   `yaml:"compress"`
}

// DefaultCleoLog is the spec-mandated peer log file name (spec.md §6).
const DefaultCleoLog = "cleo.log"

// DefaultConfig returns the logging configuration CLEO uses when the host
// app hasn't overridden it: a rotating cleo.log next to the catalogue root.
func DefaultConfig(catalogueRoot string) Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "file",
		File: &LogFile{
			Directory: filepath.Dir(catalogueRoot),
			Filename:  DefaultCleoLog,
			MaxSizeMB: 8,
			MaxFiles:  3,
			MaxAgeDay: 14,
			Compress:  true,
		},
	}
}

// New builds a *slog.Logger tagged with the given component name.
func New(component string, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	writer := writerFor(cfg)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With("component", component)
}

// WithContext enriches logger with request-scoped fields found on ctx, the
// way a hooked entry point can tag its log lines with the script or stream
// it's currently servicing.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if scriptName := ctx.Value(ctxKeyScript{}); scriptName != nil {
		logger = logger.With("script", scriptName)
	}
	if streamIdx := ctx.Value(ctxKeyStream{}); streamIdx != nil {
		logger = logger.With("stream", streamIdx)
	}
	return logger
}

type ctxKeyScript struct{}
type ctxKeyStream struct{}

// WithScript returns a context tagged with a script name for logging.
func WithScript(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyScript{}, name)
}

// WithStream returns a context tagged with a stream index for logging.
func WithStream(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, ctxKeyStream{}, idx)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writerFor(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.File == nil {
			fmt.Fprintln(os.Stderr, "logging: file output requested without a file config, falling back to stderr")
			return os.Stderr
		}
		if err := os.MkdirAll(cfg.File.Directory, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logging: cannot create log directory %s: %v, falling back to stderr\n", cfg.File.Directory, err)
			return os.Stderr
		}
		return &lumberjack.Logger{
			Filename:   filepath.Join(cfg.File.Directory, cfg.File.Filename),
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxFiles,
			MaxAge:     cfg.File.MaxAgeDay,
			Compress:   cfg.File.Compress,
		}
	default:
		fmt.Fprintf(os.Stderr, "logging: unknown output %q, falling back to stderr\n", cfg.Output)
		return os.Stderr
	}
}
