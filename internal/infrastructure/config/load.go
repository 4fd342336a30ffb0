package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envFileName is the dotenv file looked for beside the YAML file.
const envFileName = ".env"

// Load builds the configuration for the YAML file at path: defaults first,
// then the file, then GRAYLOGIC_* variables. A dotenv file seeds the
// environment before the overrides run but never replaces a variable the
// process already has.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile reads GRAYLOGIC_ENV_FILE when set, which must then exist, or
// else the optional .env beside configPath.
func loadEnvFile(configPath string) error {
	name, required := os.Getenv("GRAYLOGIC_ENV_FILE"), true
	if name == "" {
		name, required = filepath.Join(filepath.Dir(configPath), envFileName), false
	}

	err := godotenv.Load(name)
	if err == nil || (!required && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("loading env file %s: %w", name, err)
}

// defaultConfig is what an empty YAML file yields: a sysfs bus sampled every
// 30 s, published to a broker on localhost.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Site = SiteConfig{ID: "site-001", Name: "Gray Logic"}
	cfg.Database = DatabaseConfig{Enabled: true, Path: "./data/onewire.db", WALMode: true, BusyTimeout: 5}

	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-onewire"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}

	cfg.API.Enabled = true
	cfg.API.Host, cfg.API.Port = "0.0.0.0", 8090
	cfg.API.Timeouts = APITimeoutConfig{Read: 30, Write: 30, Idle: 60}
	cfg.API.Auth.TokenTTL = 24

	cfg.WebSocket = WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	cfg.InfluxDB.BatchSize, cfg.InfluxDB.FlushInterval = 100, 10
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	cfg.OneWire.Driver = DriverSysfs
	cfg.OneWire.SysfsPath = "/sys/bus/w1/devices"
	cfg.OneWire.Simulated = SimulatedBusConfig{Devices: 3, Seed: 1}

	cfg.DS18xHA = DS18xHAConfig{Enable: true, Period: 30, NamePrefix: "ds18x_"}
	cfg.HomeAssistant.DiscoveryPrefix = "homeassistant"
	cfg.HomeAssistant.NodeID = "graylogic_onewire"

	return cfg
}
