// Package persistence selects the activity store backend named by configuration.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/catalog"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/persistence/memory"
	"example.com/mergington/internal/persistence/postgres"
	"example.com/mergington/internal/persistence/sqlite"
)

// Backend is an opened store. Pool is set only for the postgres driver, where
// the outbox dispatcher shares it.
type Backend struct {
	Store domain.Store
	Pool  *pgxpool.Pool
}

// Close releases the store and its connections.
func (b *Backend) Close() error {
	return b.Store.Close()
}

// Open connects to the configured backend and prepares its schema. The memory
// backend starts with the built-in catalog.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{Store: postgres.NewStore(pool), Pool: pool}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("opened sqlite store", "path", cfg.SQLitePath)
		return &Backend{Store: store}, nil

	case config.DriverMemory:
		store := memory.NewStore()
		defaults, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		result, err := catalog.Seed(ctx, store, defaults)
		if err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		slog.Info("seeded memory store", "activities", result.Activities, "participants", result.ParticipantsAdded)
		return &Backend{Store: store}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
