package websocket

import (
	"context"
	"io"
	"log/slog"
)

func newTestContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
