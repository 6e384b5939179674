package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Chandra179/magic-auth-service/internal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := internal.StartServer(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
