package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/ingest"
)

// runLoad chunks and embeds documents into the knowledge store.
// "load --sample" loads the built-in corpus; otherwise each argument is a
// file path loaded as one document.
func runLoad(args []string) error {
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

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	var stats ingest.Stats
	switch {
	case len(args) == 1 && args[0] == "--sample":
		stats, err = a.Loader.Load(ctx, ingest.SampleDocuments())
	case len(args) > 0:
		stats, err = a.Loader.LoadFiles(ctx, args)
	default:
		return errors.New("load requires --sample or at least one file path")
	}
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}

	total, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}

	fmt.Printf("Loaded %d documents (%d chunks), store now holds %d chunks\n",
		stats.Documents, stats.Chunks, total)
	return nil
}
