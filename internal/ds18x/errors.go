package ds18x

import "errors"

// Domain errors for the ds18x package.
var (
	// ErrInvalidBinding is returned for a config entry with a malformed
	// address, a missing name, or invalid JSON.
	ErrInvalidBinding = errors.New("ds18x: invalid binding")

	// ErrDuplicateBinding is returned when a config entry names an address
	// that is already bound or already has a sensor.
	ErrDuplicateBinding = errors.New("ds18x: duplicate binding")

	// ErrNameCollision is returned when the resolved name already belongs to
	// an automation object of another device.
	ErrNameCollision = errors.New("ds18x: name collision")

	// ErrObjectCreate is returned when the automation object for a sensor
	// cannot be created. No partial state is left behind.
	ErrObjectCreate = errors.New("ds18x: object creation failed")
)
