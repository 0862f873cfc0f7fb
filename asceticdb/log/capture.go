package log

import (
	"context"
	"io"
	"log/slog"
)

// ExceptionLogger receives every failure of the data-access layer
// before it is returned, rejected or swallowed. Capture must not panic
// and must not block for long.
type ExceptionLogger interface {
	Capture(ctx context.Context, err error, source string)
}

type ExceptionLoggerFunc func(ctx context.Context, err error, source string)

func (f ExceptionLoggerFunc) Capture(ctx context.Context, err error, source string) {
	f(ctx, err, source)
}

// SlogCapturer writes captured failures as error records of the
// default slog logger.
type SlogCapturer struct{}

func (SlogCapturer) Capture(ctx context.Context, err error, source string) {
	defer func() {
		_ = recover()
	}()
	Error(ctx, "exception captured",
		slog.String("source", source),
		Err("error", err),
	)
}

// NewHandler builds the slog handler selected by format ("json" or
// "text") writing records at or above level.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
