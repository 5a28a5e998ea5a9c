package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/Zereker/chat"
	"github.com/Zereker/chat/internal/config"
)

func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := chat.NewLogger(os.Stderr, cfg.Verbosity())
	slog.SetDefault(logger)

	server, err := chat.New(cfg.Addr(),
		chat.LoggerOption(logger),
		chat.MaxFrameSizeOption(cfg.MaxFrameSize),
		chat.RateLimitOption(cfg.RateLimit, cfg.RateBurst),
		chat.IdleTimeoutOption(cfg.IdleTimeout),
	)
	if err != nil {
		slog.Error("failed to create server", "addr", cfg.Addr(), "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down server...")
		cancel()
	}()

	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
