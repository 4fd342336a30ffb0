package ds18x

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// Binding assigns a configured name to a device address.
type Binding struct {
	Address onewire.Address
	Name    string
}

// bindingPayload is the JSON shape of one config entry:
//
//	{"address": "28FF4A1B02160348", "name": "kitchen"}
//	{"address": [40, 255, 74, 27, 2, 22, 3, 72], "name": "kitchen"}
type bindingPayload struct {
	Address json.RawMessage `json:"address"`
	Name    string          `json:"name"`
}

// ParseBinding decodes one config entry. The address is either a hex string
// or an array of byte values and must be exactly 8 bytes long; the name must
// be non-empty.
func ParseBinding(payload json.RawMessage) (Binding, error) {
	var p bindingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Binding{}, fmt.Errorf("%w: %w", ErrInvalidBinding, err)
	}

	addr, err := parseBindingAddress(p.Address)
	if err != nil {
		return Binding{}, err
	}
	if p.Name == "" {
		return Binding{}, fmt.Errorf("%w: address %s: missing name", ErrInvalidBinding, addr)
	}

	return Binding{Address: addr, Name: p.Name}, nil
}

// parseBindingAddress decodes the address field.
func parseBindingAddress(raw json.RawMessage) (onewire.Address, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return onewire.Address{}, fmt.Errorf("%w: missing address", ErrInvalidBinding)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return onewire.Address{}, fmt.Errorf("%w: %w", ErrInvalidBinding, err)
		}
		addr, err := onewire.ParseAddress(s)
		if err != nil {
			return onewire.Address{}, fmt.Errorf("%w: %w", ErrInvalidBinding, err)
		}
		return addr, nil

	case '[':
		var values []int
		if err := json.Unmarshal(raw, &values); err != nil {
			return onewire.Address{}, fmt.Errorf("%w: address array: %w", ErrInvalidBinding, err)
		}
		b := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 0xFF {
				return onewire.Address{}, fmt.Errorf("%w: address byte %d out of range: %d", ErrInvalidBinding, i, v)
			}
			b[i] = byte(v)
		}
		addr, err := onewire.AddressFromBytes(b)
		if err != nil {
			return onewire.Address{}, fmt.Errorf("%w: %w", ErrInvalidBinding, err)
		}
		return addr, nil

	default:
		return onewire.Address{}, fmt.Errorf("%w: address must be a string or a byte array", ErrInvalidBinding)
	}
}

// ParseBindings decodes a list of config entries, keeping their order.
// Malformed entries are logged and skipped.
func ParseBindings(payloads []json.RawMessage, logger Logger) []Binding {
	if logger == nil {
		logger = noopLogger{}
	}

	bindings := make([]Binding, 0, len(payloads))
	for i, p := range payloads {
		b, err := ParseBinding(p)
		if err != nil {
			logger.Warn("skipping ds18x binding", "index", i, "error", err)
			continue
		}
		bindings = append(bindings, b)
	}
	return bindings
}

// ResolveName returns the name of the first binding for addr.
func ResolveName(addr onewire.Address, bindings []Binding) (string, bool) {
	for _, b := range bindings {
		if b.Address == addr {
			return b.Name, true
		}
	}
	return "", false
}
