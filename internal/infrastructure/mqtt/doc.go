// Package mqtt provides the MQTT transport between the one-wire bridge and
// Home Assistant.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Node availability (retained online/offline plus Last Will)
//   - Message publishing with QoS guarantees
//   - Subscriptions restored after reconnect
//   - Topic builders for discovery, state and availability
//
// # Topics
//
//	<node_id>/status                                   online | offline
//	<node_id>/stat/<object>                            {"temperature":"21.5000"}
//	<prefix>/sensor/<node_id>/<object>_<class>/config  discovery (retained)
//	<prefix>/status                                    Home Assistant birth
//
// # Usage
//
//	topics := mqtt.Topics{DiscoveryPrefix: "homeassistant", NodeID: "onewire"}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish(topics.State("kitchen"), []byte(`{"temperature":"21.5000"}`), 1, false)
package mqtt
