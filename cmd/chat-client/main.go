package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/Zereker/chat"
	"github.com/Zereker/chat/client"
	"github.com/Zereker/chat/internal/config"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := chat.NewLogger(os.Stderr, cfg.Verbosity())
	slog.SetDefault(logger)

	session := client.NewSession(cfg.Addr(),
		client.UsernameOption(cfg.Username),
		client.LoggerOption(logger),
		client.CodecOption(chat.FrameCodec{MaxFrameSize: cfg.MaxFrameSize}),
		client.StoreOption(client.NewStore(cfg.ImagesDir, cfg.FilesDir)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx, os.Stdin)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-done:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("client error", "error", err)
			os.Exit(1)
		}
	case <-sigCh:
		// Run may still be blocked reading stdin.
		slog.Info("shutting down client...")
		cancel()
		session.Close()
	}
}
