package ds18x

import (
	"encoding/json"
	"fmt"
)

// ProviderName is the key under which ds18x bindings are listed in the
// provider config file.
const ProviderName = "ds18x"

// ApplyBinding is the ds18x config provider. It parses one config entry,
// stores the binding and creates the sensor straight away so it appears in
// Home Assistant before its first reading.
//
// Each error concerns this entry only; the caller logs it and moves on. A
// binding whose sensor could not be created is kept, so the configured name
// is still used when the device is next seen on the bus.
func (r *Registry) ApplyBinding(payload json.RawMessage) error {
	b, err := ParseBinding(payload)
	if err != nil {
		return err
	}
	if err := r.AddBinding(b); err != nil {
		return err
	}
	if _, err := r.GetOrCreate(b.Address, SourceConfig); err != nil {
		return fmt.Errorf("creating configured sensor %q: %w", b.Name, err)
	}
	return nil
}
