package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/nerrad567/gray-logic-motion/migrations"

	"github.com/nerrad567/gray-logic-motion/internal/api"
	"github.com/nerrad567/gray-logic-motion/internal/gpio"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-motion/internal/lighting"
	"github.com/nerrad567/gray-logic-motion/internal/platform"
)

// Transition history older than this is pruned once a day.
const (
	historyRetention     = 30 * 24 * time.Hour
	historyPruneInterval = 24 * time.Hour
)

// run is the service logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - path: Configuration file path
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, path string) error { //nolint:gocognit,gocyclo // startup sequence reads top to bottom
	log := logging.Default()
	log.Info("starting Gray Logic Motion",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database holds the transition history.
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	history := lighting.NewSQLiteHistoryRepository(db.DB)
	go pruneHistoryLoop(ctx, history, log)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	var telemetry []lighting.Telemetry

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		collectors = metrics.New(cfg.Metrics.Namespace)
		collectors.SetBrokerConnected(mqttClient.IsConnected())
		telemetry = append(telemetry, collectors)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = append(telemetry, influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Platform: entity state cache, commands and status over MQTT.
	plat := platform.NewMQTT(mqttClient, log.Component("platform"))
	if collectors != nil {
		plat.SetUpdateObserver(collectors)
	}
	if startErr := plat.Start(ctx); startErr != nil {
		return fmt.Errorf("starting MQTT platform: %w", startErr)
	}

	if cfg.GPIO.Enabled {
		stop, gpioErr := startGPIO(ctx, cfg.GPIO, plat, log)
		if gpioErr != nil {
			return gpioErr
		}
		defer stop()
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	manager := lighting.NewManager(plat, log.Component("lighting"))
	if buildErr := manager.Build(cfg.Lighting.Controllers, cfg.Location(), lighting.Deps{
		Platform:    plat,
		Recorder:    history,
		Telemetry:   telemetry,
		Broadcaster: hub,
		Logger:      log.Component("lighting"),
	}); buildErr != nil {
		return fmt.Errorf("building controllers: %w", buildErr)
	}
	writeGraphs(manager, log)

	if startErr := manager.Start(ctx); startErr != nil {
		return fmt.Errorf("starting controllers: %w", startErr)
	}
	defer manager.Stop()
	log.Info("lighting controllers started", "controllers", len(manager.List()))

	// A broker restarted without persistence has lost the retained statuses.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected, republishing controller status")
		if collectors != nil {
			collectors.SetBrokerConnected(true)
		}
		for _, c := range manager.List() {
			c.PublishStatus(ctx)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost, controller commands will fail until reconnect", "error", err)
		if collectors != nil {
			collectors.SetBrokerConnected(false)
		}
	})

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Manager: manager,
			History: history,
			Health:  health,
			DB:      db.DB,
			Hub:     hub,
			Version: version,
		}
		if collectors != nil {
			deps.Metrics = collectors.Handler()
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic Motion stopped")
	return nil
}

// startGPIO opens the configured lines and polls them until ctx ends.
// The returned func releases the lines.
func startGPIO(ctx context.Context, cfg config.GPIOConfig, plat *platform.MQTT, log *logging.Logger) (func(), error) {
	reader, err := gpio.NewRealReader(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening GPIO: %w", err)
	}

	watcher := gpio.NewWatcher(reader, cfg, plat, log.Component("gpio"), true)
	ticker := time.NewTicker(gpio.DefaultPollInterval)
	go func() {
		if runErr := watcher.Run(ctx, ticker.C); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("GPIO watcher stopped", "error", runErr)
		}
	}()

	log.Info("GPIO sensors enabled", "chip", cfg.Chip, "sensors", len(cfg.Sensors))
	return func() {
		ticker.Stop()
		if closeErr := reader.Close(); closeErr != nil {
			log.Error("error closing GPIO", "error", closeErr)
		}
	}, nil
}

// writeGraphs writes <name>.dot for every controller with draw enabled.
func writeGraphs(manager *lighting.Manager, log *logging.Logger) {
	for _, c := range manager.List() {
		if !c.Settings().Draw {
			continue
		}
		file := filepath.Clean(c.Name() + ".dot")
		if err := os.WriteFile(file, []byte(c.Graph()), 0o644); err != nil { //nolint:gosec // diagnostic output
			log.Warn("writing controller graph failed", "controller", c.Name(), "error", err)
			continue
		}
		log.Info("controller graph written", "controller", c.Name(), "file", file)
	}
}

// pruneHistoryLoop deletes old transition records once a day.
func pruneHistoryLoop(ctx context.Context, repo *lighting.SQLiteHistoryRepository, log *logging.Logger) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.Prune(ctx, historyRetention)
			if err != nil {
				log.Warn("pruning transition history failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("transition history pruned", "deleted", n)
			}
		}
	}
}
