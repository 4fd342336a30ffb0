// Package api implements the read-only HTTP API and WebSocket stream for the
// one-wire bridge.
//
// This package provides:
//   - REST endpoints for sensor records, the seen-device inventory and health
//   - WebSocket hub broadcasting every temperature reading as it is taken
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API sits beside the MQTT path. Home Assistant receives readings over
// MQTT; the API exists for local diagnostics and dashboards that want the
// same data without a broker. Readings reach the hub through a scheduler
// observer, never by polling the bus.
//
// # Graceful Degradation
//
// The server operates without a database or a sensor feature. Endpoints that
// need a missing component answer 503 rather than failing at startup.
package api
