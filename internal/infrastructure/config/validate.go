package config

import (
	"errors"
	"fmt"
	"strings"
)

// minJWTSecretLength matches the auth package's minimum signing secret.
const minJWTSecretLength = 32

// ErrInvalid wraps every error returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Validate reports every problem in c at once, one line per field.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(!c.Database.Enabled || c.Database.Path != "", "database.path is required when the database is enabled")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)

	if c.API.Enabled {
		check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port %d is out of range", c.API.Port)
	}
	secret := c.API.Auth.JWTSecret
	check(secret == "" || len(secret) >= minJWTSecretLength,
		"api.auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	check(c.API.Auth.TokenTTL >= 0, "api.auth.token_ttl must not be negative")
	check(c.API.MDNS.TTL >= 0, "api.mdns.ttl must not be negative")

	check(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	switch c.OneWire.Driver {
	case DriverSysfs:
	case DriverSimulated:
		check(c.OneWire.Simulated.Devices >= 0, "onewire.simulated.devices must not be negative")
	default:
		errs = append(errs, fmt.Errorf("onewire.driver %q is not %q or %q", c.OneWire.Driver, DriverSysfs, DriverSimulated))
	}

	// Short periods are raised by the scheduler; only nonsense is rejected.
	check(c.DS18xHA.Period >= 0, "ds18x_ha.period must not be negative")

	ha := c.HomeAssistant
	check(ha.DiscoveryPrefix != "", "homeassistant.discovery_prefix is required")
	check(ha.NodeID != "", "homeassistant.node_id is required")
	check(!strings.ContainsAny(ha.NodeID, "/+# "), "homeassistant.node_id %q must not contain '/', '+', '#' or spaces", ha.NodeID)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
