package logger

import (
	"context"
	"io"
	"log/slog"
)

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestCtx returns a context carrying a discarding logger.
func TestCtx() context.Context {
	return ToContext(context.Background(), Discard())
}
