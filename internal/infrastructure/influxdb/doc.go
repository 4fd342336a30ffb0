// Package influxdb writes sensor temperature telemetry to InfluxDB v2.
//
// Every successful reading becomes one sensor_temperature point tagged with
// the sensor address and name, plus the default tags given to Connect
// (site and node). Telemetry is optional: when disabled in
// config, Connect returns ErrDisabled and the bridge runs without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB, map[string]string{"site": cfg.Site.ID})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorTemperature(influxdb.SensorReading{
//	    Address: "28FF4A1B02160348", Name: "kitchen", Celsius: 21.5,
//	})
//
// Writes are batched according to batch_size and flush_interval. A failed
// batch makes HealthCheck report ErrWriteFailing for one minute.
package influxdb
