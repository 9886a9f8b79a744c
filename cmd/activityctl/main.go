package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"example.com/mergington/internal/cli"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/logging"
	"example.com/mergington/internal/persistence"
)

func main() {
	cfg := config.Load()
	// Diagnostics go to stderr at warn so command output stays parseable.
	logger := logging.New(os.Stderr, "warn", cfg.LogFormat)
	slog.SetDefault(logger)

	open := func(ctx context.Context) (domain.Store, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		backend, err := persistence.Open(ctx, cfg)
		if err != nil {
			logger.Error("failed to open store", "driver", cfg.StorageDriver, "error", err)
			return nil, err
		}
		return backend.Store, nil
	}

	if err := cli.NewRootCommand(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
