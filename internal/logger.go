package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process logger. prod writes JSON with RFC3339Nano
// timestamps; every other env writes text. Debug level adds source
// locations.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var h slog.Handler

	var l = new(slog.LevelVar) // Info by default
	switch level {
	case "debug":
		l.Set(slog.LevelDebug)
	case "warn":
		l.Set(slog.LevelWarn)
	case "error":
		l.Set(slog.LevelError)
	case "info":
	default:
		slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
	}

	opts := &slog.HandlerOptions{
		Level:     l,
		AddSource: l.Level() == slog.LevelDebug,
	}

	switch env {
	case "prod":
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		}
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", "dar"))
}
