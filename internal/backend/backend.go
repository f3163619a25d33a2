// Package backend opens the durable store selected by storage.driver.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/claude/pushreps/internal/config"
	"github.com/claude/pushreps/internal/kvstore"
	"github.com/claude/pushreps/internal/notify"
	"github.com/claude/pushreps/internal/progress"
	"github.com/claude/pushreps/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Backend bundles the progress and settings stores of one driver.
type Backend struct {
	Progress progress.Backend
	Settings notify.Settings
	// Collectors report connection pool statistics for the driver.
	Collectors []prometheus.Collector
	close      func()
}

// Close releases the underlying connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the configured driver. For postgres, pending migrations
// from migrationsPath are applied first.
func Open(ctx context.Context, cfg *config.Config, migrationsPath string, log *slog.Logger) (*Backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, progress is lost on exit")
		return &Backend{
			Progress: progress.NewMemoryBackend(),
			Settings: notify.NewMemorySettings(),
		}, nil

	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		version, err := storage.RunMigrations(dsn, migrationsPath)
		if err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		log.Info("migrations applied", "version", version)

		db, err := storage.New(ctx, dsn, log)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return &Backend{
			Progress: db,
			Settings: db,
			Collectors: []prometheus.Collector{
				pgxpoolprometheus.NewCollector(db.Pool, map[string]string{"db_name": cfg.Database.Name}),
			},
			close: db.Close,
		}, nil

	default:
		kv, err := kvstore.Open(cfg.Storage.SQLiteDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		log.Info("sqlite store opened", "dir", cfg.Storage.SQLiteDir)
		return &Backend{
			Progress:   kv,
			Settings:   kv,
			Collectors: []prometheus.Collector{collectors.NewDBStatsCollector(kv.DB(), "pushreps")},
			close: func() {
				if err := kv.Close(); err != nil {
					log.Warn("closing sqlite store", "error", err)
				}
			},
		}, nil
	}
}
