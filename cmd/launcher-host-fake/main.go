package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kofuk/premises-launcher/internal/config"
	"github.com/kofuk/premises-launcher/internal/fake/launcherhost"
	"github.com/kofuk/premises-launcher/internal/kvs"
	potel "github.com/kofuk/premises-launcher/internal/otel"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

func createStore(ctx context.Context, cfg *config.Config) (kvs.Store, error) {
	if cfg.RedisAddress == "" {
		return kvs.NewFile(cfg.DataDir), nil
	}

	redis := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
	if _, err := redis.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	if err := redisotel.InstrumentTracing(redis); err != nil {
		return nil, err
	}

	return kvs.NewRedis(redis), nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.LogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := potel.InitializeTracer(ctx, "premises-launcher-host")
	if err != nil {
		slog.Error("Failed to initialize tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown(context.Background())

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		slog.Error("Failed to create data directory", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := createStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create config store", slog.Any("error", err))
		os.Exit(1)
	}

	opts := []launcherhost.Option{
		launcherhost.WithStore(store),
		launcherhost.WithDefaultProviders(cfg.DefaultProviders),
	}
	if cfg.ModpackURL != "" {
		provider, err := launcherhost.NewModpackProvider(ctx, cfg.ModpackURL, cfg.S3ForcePathStyle)
		if err != nil {
			slog.Error("Failed to create modpack provider", slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, launcherhost.WithModpackProvider(provider))
	}

	if cfg.ResolveVersions {
		opts = append(opts, launcherhost.WithVersionResolver(launcherhost.NewVersionResolver(cfg.ManifestURL)))
	}

	host := launcherhost.New(opts...)
	network, address := cfg.HostEndpoint()

	if err := host.Start(ctx, network, address); err != nil {
		slog.Error("Launcher host stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
