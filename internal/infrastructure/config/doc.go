// Package config loads the bridge configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. Defaults (30 s sampling on the sysfs driver, MQTT on localhost)
//  2. The YAML file, usually configs/config.yaml
//  3. GRAYLOGIC_* environment variables, optionally seeded from a .env file
//     next to the YAML file or named by GRAYLOGIC_ENV_FILE
//
// Secrets such as the MQTT password, the InfluxDB token and the API signing
// key belong in the environment rather than the file.
//
// The ds18x_ha section is the parsed form of the Home Assistant provider
// document: sensor bindings, the sampling period and the name prefix for
// discovered sensors. Load validates the whole tree and reports every
// problem at once.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	period := cfg.DS18xHA.Period
package config
