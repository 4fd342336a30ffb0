package homeassistant

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
)

// discoveryQoS is used for retained discovery configs.
const discoveryQoS byte = 1

// manufacturer is reported in the discovery device block.
const manufacturer = "Gray Logic"

// deviceInfo is the "dev" block of a discovery config. All entities of the
// bridge share one device.
type deviceInfo struct {
	Identifiers  []string `json:"ids"`
	Name         string   `json:"name"`
	SWVersion    string   `json:"sw,omitempty"`
	Manufacturer string   `json:"mf"`
}

// objectID returns the discovery object id of one class of o.
func objectID(o *Object, c Class) string {
	return o.name + "_" + c.Name
}

// discoveryPayload builds the Home Assistant discovery config for one class.
// Class attributes override the generated keys.
func (r *Registry) discoveryPayload(o *Object, c Class) ([]byte, error) {
	id := objectID(o, c)
	cfg := map[string]any{
		"name":    id,
		"uniq_id": r.topics.NodeID + "_" + id,
		"stat_t":  r.topics.State(o.name),
		"avty_t":  r.topics.Availability(),
		"dev_cla": c.Name,
		"val_tpl": fmt.Sprintf("{{ value_json.%s }}", c.Name),
		"dev": deviceInfo{
			Identifiers:  []string{r.topics.NodeID},
			Name:         r.deviceName,
			SWVersion:    r.version,
			Manufacturer: manufacturer,
		},
	}
	for k, v := range c.Attributes {
		cfg[k] = v
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding discovery for %q: %w", id, err)
	}
	return payload, nil
}

// publishClassDiscovery publishes the retained discovery config for one class.
func (r *Registry) publishClassDiscovery(o *Object, c Class) error {
	payload, err := r.discoveryPayload(o, c)
	if err != nil {
		return err
	}
	return r.publishRetained(r.topics.Discovery(string(o.component), objectID(o, c)), payload)
}

// publishRetained publishes a retained discovery message. An empty payload
// deletes the retained config on the broker.
func (r *Registry) publishRetained(topic string, payload []byte) error {
	if r.publisher == nil {
		return nil
	}
	if !r.publisher.IsConnected() {
		return mqtt.ErrNotConnected
	}
	return r.publisher.Publish(topic, payload, discoveryQoS, true)
}

// PublishDiscovery republishes the discovery config of every class of every
// object. It is called after each (re)connect and on a Home Assistant birth
// message. All configs are attempted; the joined errors are returned.
func (r *Registry) PublishDiscovery() error {
	var errs []error
	count := 0
	for _, o := range r.Objects() {
		for _, c := range o.Classes() {
			if err := r.publishClassDiscovery(o, c); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", objectID(o, c), err))
				continue
			}
			count++
		}
	}

	r.getLogger().Debug("discovery published", "configs", count, "failed", len(errs))
	return errors.Join(errs...)
}

// HandleBirth is the MQTT handler for the Home Assistant birth topic. An
// "online" payload means Home Assistant restarted and lost its entities.
func (r *Registry) HandleBirth(_ string, payload []byte) error {
	if string(payload) != mqtt.PayloadOnline {
		return nil
	}
	r.getLogger().Info("home assistant online, republishing discovery")
	return r.PublishDiscovery()
}
