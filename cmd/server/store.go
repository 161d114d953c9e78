package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/citl-review-server/internal/domain"
	"github.com/citl-review-server/internal/store"
)

// openStore builds the configured artifact store backend, runs migrations for
// PostgreSQL, and wraps the result in the LRU cache when enabled.
func openStore(cfg domain.StorageConfig, logger *logrus.Logger) (store.Store, error) {
	var inner store.Store

	switch cfg.Backend {
	case "postgres":
		runner, err := store.NewMigrationRunner(cfg.PostgresURL, cfg.MigrationsPath, logger)
		if err != nil {
			return nil, fmt.Errorf("creating migration runner: %w", err)
		}
		if err := runner.Up(context.Background()); err != nil {
			runner.Close()
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
		if err := runner.Close(); err != nil {
			return nil, err
		}

		pg, err := store.NewPostgresStoreFromURL(cfg.PostgresURL, cfg)
		if err != nil {
			return nil, err
		}
		inner = pg

	case "sqlite":
		sq, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		inner = sq

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}

	if cfg.CacheSize > 0 {
		cached, err := store.NewCachedStore(inner, cfg.CacheSize)
		if err != nil {
			inner.Close()
			return nil, fmt.Errorf("creating store cache: %w", err)
		}
		return cached, nil
	}
	return inner, nil
}
