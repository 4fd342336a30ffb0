// Package logging is the bridge's structured logger, built on log/slog.
//
// Every entry carries the service name and version; components add their
// own tag with Component. The level is shared by all loggers derived from
// one root and can be changed while running:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
//	log := logging.New(cfg.Logging, version)
//	log.Component("ds18x").Info("sampling started", "period", period)
//	log.ToggleDebug() // main wires this to SIGUSR1
package logging
