// Power Analytics - power reading service
//
// This is the main entry point. It stores timestamped power readings,
// serves them over a REST API, streams changes over WebSocket, mirrors
// them to MQTT and InfluxDB, and optionally ingests readings from MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/power-analytics/migrations"

	"github.com/nerrad567/power-analytics/internal/api"
	"github.com/nerrad567/power-analytics/internal/audit"
	"github.com/nerrad567/power-analytics/internal/infrastructure/config"
	"github.com/nerrad567/power-analytics/internal/infrastructure/influxdb"
	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/infrastructure/mqtt"
	"github.com/nerrad567/power-analytics/internal/infrastructure/tracing"
	"github.com/nerrad567/power-analytics/internal/ingest"
	"github.com/nerrad567/power-analytics/internal/notify"
	"github.com/nerrad567/power-analytics/internal/reading"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "POWERANALYTICS_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled, then tears
// everything down in reverse order through the deferred closers.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting power analytics",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Service.Name, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		// ctx is already cancelled here; give the exporter its own budget.
		flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		if shutdownErr := shutdownTracing(flushCtx); shutdownErr != nil {
			log.Error("error flushing traces", "error", shutdownErr)
		}
	}()
	if cfg.Tracing.Enabled {
		log.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	checks := make(map[string]api.HealthChecker)

	repo, db, err := openRepository(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		checks["database"] = db
	}

	sinks := []notify.Sink{}

	var auditLister api.AuditLister
	if db != nil {
		auditRepo := audit.NewSQLiteRepository(db.DB)
		recorder := audit.NewRecorder(auditRepo, log)
		recorder.Start()
		defer func() {
			log.Info("flushing audit trail")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing audit recorder", "error", closeErr)
			}
		}()
		auditLister = auditRepo
		sinks = append(sinks, recorder)
	} else {
		log.Info("audit trail disabled for in-memory store")
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient
		sinks = append(sinks, notify.NewMQTTSink(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		sinks = append(sinks, notify.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	svc := reading.NewService(repo)

	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Service:      svc,
		HealthChecks: checks,
		Audit:        auditLister,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sinks = append(sinks, srv.Hub())
	dispatcher := notify.NewDispatcher(log, sinks...)
	svc.SetObserver(dispatcher)
	log.Info("change notifications wired", "sinks", dispatcher.SinkCount())

	if cfg.MQTT.Ingest.Enabled {
		topic := cfg.MQTT.Ingest.Topic
		if topic == "" {
			topic = mqtt.Topics{}.DefaultIngest()
		}
		ingestor := ingest.New(mqttClient, svc, topic, mqttClient.QoS(), log)
		if startErr := ingestor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT ingestion: %w", startErr)
		}
		defer func() {
			stats := ingestor.Stats()
			log.Info("stopping MQTT ingestion",
				"received", stats.Received,
				"stored", stats.Stored,
				"dropped", stats.Dropped,
			)
			if stopErr := ingestor.Stop(); stopErr != nil {
				log.Error("error stopping MQTT ingestion", "error", stopErr)
			}
		}()
		log.Info("MQTT ingestion started", "topic", topic)
	}

	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "addr", srv.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POWERANALYTICS_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
