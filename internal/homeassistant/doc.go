// Package homeassistant is the automation layer the bridge exposes its
// sensors through.
//
// A Registry holds named objects. Each object belongs to a component
// (currently only sensor) and carries one or more measurement classes such
// as "temperature". For every class the registry publishes a retained Home
// Assistant MQTT discovery config; SendStatus publishes the object's current
// values as one JSON document on the object's state topic:
//
//	graylogic_onewire/stat/kitchen  {"temperature":"21.5000"}
//
// Feature packages register config providers by name. LoadProviders reads a
// JSON or YAML file, hands every payload listed under a provider's key to
// that provider, and logs and skips payloads the provider rejects:
//
//	providers:
//	  ds18x:
//	    - {address: "28FF4A1B02160348", name: kitchen}
//
// All Registry methods are safe for concurrent use.
package homeassistant
