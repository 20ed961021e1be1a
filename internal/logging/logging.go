package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Setup configures the global slog default with a JSON handler on stdout.
// level is one of DEBUG, INFO, WARN, ERROR and defaults to INFO.
func Setup(level string) {
	slog.SetDefault(New(os.Stdout, level))
}

// New returns a JSON logger writing to w. ERROR-level records carry a
// stack trace.
func New(w io.Writer, level string) *slog.Logger {
	json := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	return slog.New(&stackHandler{Handler: json})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
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

// Fatal logs at Error level and exits with code 1.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// stackHandler wraps a slog.Handler and appends a stack trace for ERROR+.
type stackHandler struct {
	slog.Handler
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		r.AddAttrs(slog.String("stacktrace", string(buf[:n])))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *stackHandler) WithGroup(name string) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithGroup(name)}
}
