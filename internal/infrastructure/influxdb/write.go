package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and field names for sensor telemetry.
const (
	measurementTemperature = "sensor_temperature"
	fieldCelsius           = "celsius"
)

// SensorReading is one temperature sample.
type SensorReading struct {
	Address string
	Name    string
	Source  string
	Celsius float64
	At      time.Time
}

// WriteSensorTemperature queues a temperature sample. The write is
// non-blocking; failures surface through the SetOnError callback.
//
// Example:
//
//	client.WriteSensorTemperature(influxdb.SensorReading{
//	    Address: "28FF4A1B02160348", Name: "kitchen", Celsius: 21.5, At: time.Now(),
//	})
func (c *Client) WriteSensorTemperature(r SensorReading) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(temperaturePoint(r))

	c.mu.Lock()
	c.stats.Queued++
	c.mu.Unlock()
}

// temperaturePoint builds the point for a reading. Address and name are
// tags; the reading itself is the only field.
func temperaturePoint(r SensorReading) *write.Point {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}

	tags := map[string]string{
		"address": r.Address,
		"name":    r.Name,
	}
	if r.Source != "" {
		tags["source"] = r.Source
	}

	return write.NewPoint(
		measurementTemperature,
		tags,
		map[string]interface{}{
			fieldCelsius: r.Celsius,
		},
		at,
	)
}
