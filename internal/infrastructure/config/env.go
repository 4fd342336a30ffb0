package config

import (
	"fmt"
	"os"
	"strconv"
)

// envPrefix starts every override variable name.
const envPrefix = "GRAYLOGIC_"

// envOverride binds one environment variable to one config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, v string) error
}

// envOverrides is every variable Load honours, named without envPrefix.
// Secrets are here so they can stay out of the YAML file.
var envOverrides = []envOverride{
	{"SITE_ID", setString(func(c *Config) *string { return &c.Site.ID })},
	{"DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},

	{"MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"MQTT_PORT", setInt(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Auth.Password })},

	{"API_HOST", setString(func(c *Config) *string { return &c.API.Host })},
	{"API_PORT", setInt(func(c *Config) *int { return &c.API.Port })},
	{"API_JWT_SECRET", setString(func(c *Config) *string { return &c.API.Auth.JWTSecret })},
	{"API_MDNS_ENABLED", setBool(func(c *Config) *bool { return &c.API.MDNS.Enabled })},

	{"INFLUXDB_URL", setString(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},

	{"LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
	{"ONEWIRE_DRIVER", setString(func(c *Config) *string { return &c.OneWire.Driver })},
	{"DS18X_ENABLE", setBool(func(c *Config) *bool { return &c.DS18xHA.Enable })},
	{"DS18X_PERIOD", setInt(func(c *Config) *int { return &c.DS18xHA.Period })},
	{"HA_CONFIG_FILE", setString(func(c *Config) *string { return &c.HomeAssistant.ConfigFile })},
}

// applyEnvOverrides copies every non-empty override variable into cfg.
// The first value that fails to parse stops it.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		name := envPrefix + o.name
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("environment override %s: %w", name, err)
		}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}
