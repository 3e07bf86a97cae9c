package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kofuk/premises-launcher/internal/cli"
	"github.com/kofuk/premises-launcher/internal/config"
	potel "github.com/kofuk/premises-launcher/internal/otel"
)

func createContext() (context.Context, context.CancelFunc) {
	ctx := potel.ContextFromTraceContext(context.Background(), os.Getenv("TRACEPARENT"))
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout belongs to the command output.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.LogLevel(),
	})))

	ctx, stop := createContext()

	shutdown, err := potel.InitializeTracer(ctx, "launcherctl")
	if err != nil {
		slog.Error("Failed to initialize tracer", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	status := cli.Run(ctx, cfg, os.Args[1:])

	shutdown(context.Background())
	stop()
	os.Exit(status)
}
