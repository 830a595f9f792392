package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/power-analytics/internal/api"
	"github.com/nerrad567/power-analytics/internal/infrastructure/config"
	"github.com/nerrad567/power-analytics/internal/infrastructure/database"
	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/infrastructure/mqtt"
	"github.com/nerrad567/power-analytics/internal/reading"
)

const (
	tracingFlushTimeout = 5 * time.Second
	healthCheckTimeout  = 5 * time.Second
)

// openRepository builds the reading store named by cfg.Driver.
//
// The memory driver returns a nil *database.DB; both SQLite drivers open
// the file, apply pending migrations and return the connection so the
// caller can close it and report on its health.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (reading.Repository, *database.DB, error) {
	if cfg.Driver == config.DriverMemory {
		log.Info("using in-memory reading store")
		return reading.NewMemoryRepository(), nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		Driver:      cfg.Driver,
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "driver", db.Driver(), "path", db.Path())

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	return reading.NewSQLiteRepository(db.DB), db, nil
}

// connectMQTT connects to the broker and routes client diagnostics
// through log.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	return client, nil
}

// healthCheck verifies every wired dependency, in name order.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	for _, name := range slices.Sorted(maps.Keys(checks)) {
		if err := checks[name].HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
