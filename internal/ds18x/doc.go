// Package ds18x exposes DS18x one-wire temperature sensors as Home Assistant
// sensor objects.
//
// The package has four parts:
//   - Bindings: configured {address, name} pairs and name resolution
//   - Registry: one Record per device address, linked to its automation object
//   - Scheduler: the two-phase sampling cycle driven by a timer queue
//   - Provider: the "ds18x" config provider that creates configured sensors at startup
//
// Sampling cycle:
//
//	period timer ──► requestConversion (bus locked: broadcast convert T)
//	                     │
//	                     └─ one-shot timer, ConversionLatency() later
//	                              │
//	                              ▼
//	                         readAll (bus locked: read every device)
//
// The bus lock is never held across the conversion delay. Both phases run
// on the timer queue goroutine, so one cycle's read always completes before
// the next cycle's request.
//
// A sensor is created once per address, either from configuration or on its
// first valid reading, and is never renamed. Creation that fails part way is
// rolled back and retried on the next cycle.
package ds18x
