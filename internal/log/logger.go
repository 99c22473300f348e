package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Output formats of NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures NewLogger.
type Options struct {
	// Verbose sets the level to Debug; otherwise Warn.
	Verbose bool

	// Format is FormatText (colored console output) or FormatJSON.
	Format string

	// NoColor disables colors in text output.
	NoColor bool

	// Fluent, if set, receives every record as well.
	Fluent Poster
}

// NewLogger creates a secure logger writing to w.
// Text output uses tint; JSON output uses the standard JSON handler. With
// Options.Fluent set, records are also forwarded to Fluent Bit.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor,
		})
	}

	if opts.Fluent != nil {
		handler = fanout{handler, NewFluentHandler(opts.Fluent, level)}
	}
	return slog.New(NewSecureHandler(handler))
}

// NewSecureLogger creates a colored text logger; verbose selects Debug over Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, Options{Verbose: verbose})
}

// fanout sends every record to all handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
