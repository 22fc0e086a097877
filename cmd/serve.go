package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"ragchat/internal/api"
	"ragchat/internal/app"
	"ragchat/internal/config"
)

// runServe initializes and starts the HTTP API server.
func runServe(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("serve takes no arguments, got %v", args)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting ragchat server", "version", AppVersion, "model", cfg.ModelName)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Conversations: a.Conversations,
		Prompts:       a.Prompts,
		LLM:           a.LLM,
		Relay:         a.Relay,
		Pool:          a.DBPool,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return srv.Run(ctx, cfg.Addr)
}
