// Gray Logic one-wire bridge.
//
// This is the main entry point for the one-wire temperature bridge. It samples
// DS18x sensors on a shared one-wire bus and publishes each one to Home
// Assistant as an MQTT-discovered sensor.
//
// Startup order matters: everything that observes readings is wired before
// the timer queue starts, so the first sampling cycle is seen by all sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/api"
	"github.com/nerrad567/gray-logic-onewire/internal/auth"
	"github.com/nerrad567/gray-logic-onewire/internal/ds18x"
	"github.com/nerrad567/gray-logic-onewire/internal/homeassistant"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mdns"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
	"github.com/nerrad567/gray-logic-onewire/migrations"
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
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runToken mints a read token for the API using the configured secret.
// Usage: graylogic-onewire token <subject>
func runToken(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: token <subject>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is not configured")
	}

	ttl := time.Duration(cfg.API.Auth.TokenTTL) * time.Hour
	token, err := auth.GenerateToken(args[0], cfg.API.Auth.JWTSecret, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic one-wire bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	go watchDebugToggle(ctx, log)

	checks := make(map[string]api.HealthChecker)

	// Sensor inventory (optional)
	var inventory *ds18x.Inventory
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS()); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		if status, statusErr := db.MigrationStatus(ctx, migrations.FS()); statusErr == nil && len(status.Unknown) > 0 {
			log.Warn("database schema is newer than this binary", "unknown_versions", status.Unknown)
		}

		inventory = ds18x.NewInventory(db.DB)
		inventory.SetLogger(log.Component("inventory"))
		if startErr := inventory.Start(); startErr != nil {
			return fmt.Errorf("starting sensor inventory: %w", startErr)
		}
		defer inventory.Stop()

		checks["database"] = db
		log.Info("database ready", "path", db.Path())
	} else {
		log.Info("database disabled, sensor inventory not recorded")
	}

	// MQTT transport
	topics := mqtt.Topics{
		DiscoveryPrefix: cfg.HomeAssistant.DiscoveryPrefix,
		NodeID:          cfg.HomeAssistant.NodeID,
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	checks["mqtt"] = mqttClient
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Automation layer
	automation := homeassistant.NewRegistry(homeassistant.RegistryConfig{
		Topics:     topics,
		Publisher:  mqttClient,
		QoS:        mqttClient.QoS(),
		DeviceName: cfg.Site.Name,
		Version:    version,
	})
	automation.SetLogger(log.Component("homeassistant"))

	// Discovery is retained, but the broker may have lost it; republish on
	// every reconnect and whenever Home Assistant announces itself.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, republishing discovery")
		if pubErr := automation.PublishDiscovery(); pubErr != nil {
			log.Warn("republishing discovery failed", "error", pubErr)
		}
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	if subErr := mqttClient.Subscribe(topics.Birth(), mqttClient.QoS(), automation.HandleBirth); subErr != nil {
		log.Warn("subscribing to Home Assistant birth topic failed", "topic", topics.Birth(), "error", subErr)
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, map[string]string{
			"site": cfg.Site.ID,
			"node": cfg.HomeAssistant.NodeID,
		})
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sensor feature
	bus := openBus(cfg.OneWire, log)
	timers := timer.New()
	timers.SetLogger(log.Component("timer"))

	feature, err := ds18x.Init(cfg.DS18xHA, ds18x.Deps{
		Bus:        bus,
		Timers:     timers,
		Automation: automation,
		Logger:     log.Component("ds18x"),
	})
	if err != nil {
		return fmt.Errorf("initialising ds18x: %w", err)
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	if feature != nil {
		wireObservers(feature, inventory, influxClient, hub)
		log.Info("ds18x sampling armed", "period", feature.Scheduler.Period().String())
	}

	if cfg.HomeAssistant.ConfigFile != "" {
		report, loadErr := automation.LoadProviders(cfg.HomeAssistant.ConfigFile)
		if loadErr != nil {
			return fmt.Errorf("loading Home Assistant config: %w", loadErr)
		}
		log.Info("Home Assistant config loaded",
			"path", cfg.HomeAssistant.ConfigFile,
			"applied", report.Applied,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}

	// The timer queue runs every sampling callback. It stops before the
	// deferred MQTT and database teardown so no callback sees a closed client.
	queueCtx, stopQueue := context.WithCancel(ctx)
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		if runErr := timers.Run(queueCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("timer queue stopped", "error", runErr)
		}
	}()
	defer func() {
		stopQueue()
		<-queueDone
		log.Info("timer queue stopped")
	}()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Checks:  checks,
			Hub:     hub,
			Version: version,
		}
		// Leave the interfaces nil rather than holding typed nil pointers.
		if feature != nil {
			deps.Sensors = feature.Registry
		}
		if inventory != nil {
			deps.Inventory = inventory
		}

		server, newErr := api.New(deps)
		if newErr != nil {
			return fmt.Errorf("creating API server: %w", newErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()

		// mDNS advertisement (optional, non-fatal)
		if adv := advertiseAPI(cfg, server.Addr(), log.Component("mdns")); adv != nil {
			defer adv.Shutdown()
		}
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, hub, timer queue,
	// InfluxDB, MQTT, inventory, database.

	log.Info("Gray Logic one-wire bridge stopped")
	return nil
}

// watchDebugToggle switches logging between debug and the configured level
// on every SIGUSR1 until ctx ends, for chasing bus faults on a live bridge.
func watchDebugToggle(ctx context.Context, log *logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.Warn("log level changed", "level", log.ToggleDebug().String())
		}
	}
}

// advertiseAPI announces the API with DNS-SD on the bound port.
// It returns nil when advertisement is disabled or fails.
func advertiseAPI(cfg *config.Config, addr string, log *logging.Logger) *mdns.Advertiser {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Warn("mDNS: cannot determine API port", "addr", addr, "error", err)
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Warn("mDNS: cannot determine API port", "addr", addr, "error", err)
		return nil
	}

	wsPath := cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}

	adv, err := mdns.Advertise(cfg.API.MDNS, mdns.Info{
		Instance: cfg.Site.Name,
		Port:     port,
		Version:  version,
		NodeID:   cfg.HomeAssistant.NodeID,
		APIPath:  "/api/v1",
		WSPath:   wsPath,
		Auth:     cfg.API.Auth.JWTSecret != "",
	})
	if err != nil {
		if errors.Is(err, mdns.ErrDisabled) {
			log.Debug("mDNS advertisement disabled")
		} else {
			log.Warn("mDNS advertisement unavailable", "error", err)
		}
		return nil
	}

	log.Info("advertising API", "instance", adv.Instance(), "service", mdns.ServiceType, "port", port)
	return adv
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openBus returns the configured bus driver, or nil when the sysfs bus is
// not present. A missing bus is not fatal: the sensor feature stays idle.
func openBus(cfg config.OneWireConfig, log *logging.Logger) onewire.Bus {
	switch cfg.Driver {
	case config.DriverSimulated:
		log.Info("using simulated one-wire bus", "devices", cfg.Simulated.Devices, "seed", cfg.Simulated.Seed)
		return onewire.NewSimulatedBus(cfg.Simulated.Devices, cfg.Simulated.Seed)
	default:
		bus, err := onewire.NewSysfsBus(cfg.SysfsPath)
		if err != nil {
			log.Warn("one-wire bus unavailable", "path", cfg.SysfsPath, "error", err)
			return nil
		}
		bus.SetLogger(log.Component("onewire"))
		log.Info("using sysfs one-wire bus", "path", cfg.SysfsPath)
		return bus
	}
}

// wireObservers connects the sensor feature to every reading sink.
// inventory and influx may be nil when disabled.
func wireObservers(feature *ds18x.Feature, inventory *ds18x.Inventory, influx *influxdb.Client, hub *api.Hub) {
	if inventory != nil {
		feature.Registry.OnCreate(inventory.ObserveCreated)
		feature.Scheduler.AddObserver(inventory.ObserveReading)
	}
	if influx != nil {
		feature.Scheduler.AddObserver(func(rec ds18x.Record) {
			influx.WriteSensorTemperature(sensorReading(rec))
		})
	}
	if hub != nil {
		feature.Scheduler.AddObserver(hub.BroadcastReading)
	}
}

// sensorReading converts a record to an InfluxDB sample.
func sensorReading(rec ds18x.Record) influxdb.SensorReading {
	return influxdb.SensorReading{
		Address: rec.Address.String(),
		Name:    rec.Name,
		Source:  string(rec.Source),
		Celsius: rec.Temperature,
		At:      rec.UpdatedAt,
	}
}
