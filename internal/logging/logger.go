// Package logging provides structured logging configuration using log/slog.
//
// Request-scoped loggers pick up chi's request ID and any fields attached
// with NewContext, so every entry written while handling a request can be
// correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
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

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns a logger enriched with request context.
//
// The base logger is the one stored with NewContext, or slog.Default.
// When ctx carries a chi RequestID, request_id is added to every entry.
//
//	func handleGenerate(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("generating", "records", n)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		logger = slog.Default()
	}

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields stores a logger with additional structured fields in ctx and
// returns both. Later FromContext calls on the returned context include the
// fields.
//
//	ctx, log := logging.WithFields(ctx, "client", clientID)
//	log.Info("preferences loaded")
func WithFields(ctx context.Context, args ...any) (context.Context, *slog.Logger) {
	base, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		base = slog.Default()
	}
	ctx = NewContext(ctx, base.With(args...))
	return ctx, FromContext(ctx)
}
