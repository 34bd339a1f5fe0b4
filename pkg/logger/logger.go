// Package logger configures the process-wide slog logger and carries a run
// id through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
)

type contextKey struct{}

// Setup installs the default slog logger writing to w and returns it. The
// tools pass os.Stderr because stdout carries their results. Debug logging
// also records the source location of each line.
func Setup(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// WithRunID tags every log line of one build or query session.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

// RunID returns the run id carried by ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}

func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if runID, ok := RunID(ctx); ok {
		l = l.With("run_id", runID)
	}
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
