package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vidfetch/vidfetch/server"
	"github.com/vidfetch/vidfetch/server/config"
)

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	cfg := config.Instance()
	if err := config.Decode(config.NewViper(configFile), cfg); err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(2)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.Int("queue_size", cfg.Server.QueueSize),
	)

	if err := server.Run(ctx, cfg); err != nil {
		slog.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
