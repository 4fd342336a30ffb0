package mqtt

import "fmt"

// Availability payloads published on Topics.Availability.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// DefaultDiscoveryPrefix is Home Assistant's default discovery prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// Topics builds the MQTT topics used by one bridge node.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{DiscoveryPrefix: "homeassistant", NodeID: "onewire"}
//	topics.State("kitchen")
//	// Returns: "onewire/stat/kitchen"
type Topics struct {
	// DiscoveryPrefix is the Home Assistant discovery prefix.
	DiscoveryPrefix string

	// NodeID identifies this bridge.
	NodeID string
}

// prefix returns the discovery prefix, falling back to the default.
func (t Topics) prefix() string {
	if t.DiscoveryPrefix == "" {
		return DefaultDiscoveryPrefix
	}
	return t.DiscoveryPrefix
}

// Availability returns the retained online/offline topic for this node.
// It doubles as the Last Will topic.
//
// Example: onewire/status
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/status", t.NodeID)
}

// State returns the status topic for an object.
//
// Example: onewire/stat/ds18x_28FF4A1B02160348
func (t Topics) State(object string) string {
	return fmt.Sprintf("%s/stat/%s", t.NodeID, object)
}

// Discovery returns the retained discovery config topic for one entity.
//
// Example: homeassistant/sensor/onewire/kitchen_temperature/config
func (t Topics) Discovery(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.prefix(), component, t.NodeID, objectID)
}

// AllDiscovery returns a wildcard matching every discovery topic of this node.
//
// Example: homeassistant/+/onewire/+/config
func (t Topics) AllDiscovery() string {
	return fmt.Sprintf("%s/+/%s/+/config", t.prefix(), t.NodeID)
}

// Birth returns the topic Home Assistant publishes its own status on.
// An "online" message there means discovery must be republished.
//
// Example: homeassistant/status
func (t Topics) Birth() string {
	return fmt.Sprintf("%s/status", t.prefix())
}
