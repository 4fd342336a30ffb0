package homeassistant

import "errors"

// Domain errors for the automation layer.
var (
	// ErrInvalidName is returned for empty object or class names, or names
	// containing MQTT topic separators or wildcards.
	ErrInvalidName = errors.New("homeassistant: invalid name")

	// ErrObjectExists is returned when adding an object whose name is taken.
	ErrObjectExists = errors.New("homeassistant: object already exists")

	// ErrObjectNotFound is returned for objects that were removed or never added.
	ErrObjectNotFound = errors.New("homeassistant: object not found")

	// ErrClassExists is returned when a class is attached to an object twice.
	ErrClassExists = errors.New("homeassistant: class already attached")

	// ErrProviderExists is returned when a provider name is registered twice.
	ErrProviderExists = errors.New("homeassistant: provider already registered")

	// ErrConfigFile is returned when the provider config file cannot be read or parsed.
	ErrConfigFile = errors.New("homeassistant: invalid config file")
)
