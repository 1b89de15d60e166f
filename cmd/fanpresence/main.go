// Fan presence service.
//
// fanpresence watches the presence sensors of every configured fan,
// reduces each fan's readings to one vote under its redundancy policy, and
// publishes confirmed transitions to the inventory manager over the MQTT
// RPC bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/fanpresence/internal/event"
	"github.com/nerrad567/fanpresence/internal/health"
	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
	"github.com/nerrad567/fanpresence/internal/infrastructure/database"
	"github.com/nerrad567/fanpresence/internal/infrastructure/influxdb"
	"github.com/nerrad567/fanpresence/internal/infrastructure/logging"
	"github.com/nerrad567/fanpresence/internal/infrastructure/mqtt"
	"github.com/nerrad567/fanpresence/internal/inventory"
	"github.com/nerrad567/fanpresence/internal/presence"
	"github.com/nerrad567/fanpresence/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, wires the service and blocks until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	var configFlag string
	var showVersion bool

	flagSet := pflag.NewFlagSet("fanpresence", pflag.ContinueOnError)
	flagSet.StringVarP(&configFlag, "config", "c", "", "path to the YAML configuration file")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if showVersion {
		fmt.Printf("fanpresence %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting fan presence service",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "fans", len(cfg.Fans))

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	history := presence.NewSQLiteHistoryRepository(db.DB)
	pruneHistory(ctx, history, cfg, log)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	caller := mqtt.NewCaller(mqttClient, mqttClient.ClientID(), mqttClient.QoS())
	if startErr := caller.Start(); startErr != nil {
		return fmt.Errorf("starting RPC caller: %w", startErr)
	}
	defer caller.Close() //nolint:errcheck // Best effort on shutdown

	// Connect to InfluxDB (optional)
	var telemetry presence.Telemetry
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	checks := []health.Check{{Name: "database", Checker: db}}
	if telemetry != nil {
		checks = append(checks, health.Check{Name: "influxdb", Checker: influxClient})
	}
	if checkErr := healthCheck(ctx, mqttClient, checks); checkErr != nil {
		return fmt.Errorf("health check failed: %w", checkErr)
	}

	loop := event.NewLoop(cfg.Service.QueueSize)
	loop.SetLogger(log)

	fans, err := buildFans(cfg, fanDeps{
		loop:      loop,
		bus:       mqttClient,
		qos:       mqttClient.QoS(),
		locator:   inventory.NewMapper(caller, cfg.Inventory),
		notifier:  inventory.NewManager(caller, cfg.Inventory),
		recorder:  history,
		telemetry: telemetry,
		logger:    log,
	})
	if err != nil {
		return fmt.Errorf("building fans: %w", err)
	}

	svc, err := presence.NewService(presence.ServiceConfig{
		Loop:           loop,
		Fans:           fans,
		ResyncInterval: cfg.GetResyncInterval(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating presence service: %w", err)
	}

	reporter := health.NewReporter(health.Config{
		ServiceID: cfg.Service.ID,
		Version:   version,
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Fans:      svc,
		Checks:    checks,
	})
	reporter.SetLogger(log)
	if pubErr := reporter.PublishStarting(); pubErr != nil {
		log.Warn("failed to publish starting health", "error", pubErr)
	}

	// A reconnect may have hidden a registry restart: publish every vote again.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected; resyncing fans")
		svc.Resync()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	reporter.Start(ctx)
	defer reporter.Stop()

	log.Info("fan presence service ready", "fans", len(fans))
	if runErr := svc.Run(ctx); runErr != nil {
		return fmt.Errorf("presence service: %w", runErr)
	}

	log.Info("shutdown signal received, stopping")
	return nil
}

// getConfigPath returns the configuration file path: the --config flag,
// then FANPRESENCE_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("FANPRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the broker link and every dependency check before
// the fans start. It returns the first failure.
func healthCheck(ctx context.Context, bus health.Checker, checks []health.Check) error {
	if err := bus.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	for _, c := range checks {
		if err := c.Checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

// historyPruner is satisfied by presence.SQLiteHistoryRepository.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistory drops presence history past the retention window.
func pruneHistory(ctx context.Context, repo historyPruner, cfg *config.Config, log *logging.Logger) {
	retention := cfg.GetHistoryRetention()
	if retention <= 0 {
		return
	}
	deleted, err := repo.PruneHistory(ctx, retention)
	if err != nil {
		log.Warn("pruning presence history failed", "error", err)
		return
	}
	if deleted > 0 {
		log.Info("pruned presence history", "deleted", deleted, "retention", retention)
	}
}
