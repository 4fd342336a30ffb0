package homeassistant

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Component is a Home Assistant entity platform.
type Component string

// Supported components.
const (
	ComponentSensor Component = "sensor"
)

// Class is one measurement attached to an object. Attributes are merged
// into the class's discovery config, e.g. {"unit_of_meas": "°C"}.
type Class struct {
	Name       string
	Attributes map[string]string
}

// Object is a named entity owned by a Registry.
type Object struct {
	name      string
	component Component

	mu      sync.RWMutex
	classes []Class
	removed bool
}

// Name returns the object's name. It never changes.
func (o *Object) Name() string {
	return o.name
}

// Component returns the object's component.
func (o *Object) Component() Component {
	return o.component
}

// Classes returns a copy of the attached classes in attach order.
func (o *Object) Classes() []Class {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Class, len(o.classes))
	for i, c := range o.classes {
		out[i] = Class{Name: c.Name, Attributes: maps.Clone(c.Attributes)}
	}
	return out
}

// HasClass reports whether a class with the given name is attached.
func (o *Object) HasClass(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hasClassLocked(name)
}

func (o *Object) hasClassLocked(name string) bool {
	for _, c := range o.classes {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Removed reports whether the object has been removed from its registry.
func (o *Object) Removed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.removed
}

// validateName rejects names that would break topic construction.
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty %s name", ErrInvalidName, kind)
	}
	if strings.ContainsAny(name, "/+#") {
		return fmt.Errorf("%w: %s name %q contains '/', '+' or '#'", ErrInvalidName, kind, name)
	}
	return nil
}
