package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is off in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed means the server did not answer the initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck before Connect or after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailing is returned by HealthCheck while recent batches fail.
	ErrWriteFailing = errors.New("influxdb: writes failing")
)
