package onewire

import (
	"sync"
	"time"
)

// DisconnectedC is the reserved reading returned when no valid temperature
// could be obtained from a device.
const DisconnectedC = -127.0

// DefaultConversionLatency is the worst-case conversion time of a DS18B20 at
// 12-bit resolution.
const DefaultConversionLatency = 750 * time.Millisecond

// Bus is the driver interface for a shared one-wire bus.
//
// Every method other than Lock/Unlock must be called with the lock held.
// Implementations are not expected to be reentrant.
type Bus interface {
	sync.Locker

	// DeviceCount enumerates the bus and returns the number of devices found.
	// Indices passed to AddressAt refer to this enumeration.
	DeviceCount() int

	// AddressAt returns the address of the device at index i.
	// Returns ErrDeviceNotFound if the index is out of range or unreadable.
	AddressAt(i int) (Address, error)

	// ReadTemperature returns the last converted temperature in Celsius,
	// or DisconnectedC on any failure.
	ReadTemperature(a Address) float64

	// RequestConversion broadcasts a "convert T" command to all devices.
	// It blocks for the conversion time only when WaitForConversion is true.
	RequestConversion() error

	// WaitForConversion reports whether RequestConversion blocks until done.
	WaitForConversion() bool

	// SetWaitForConversion enables or disables blocking conversion requests.
	SetWaitForConversion(wait bool)

	// ConversionLatency returns the worst-case conversion time of the
	// currently known devices.
	ConversionLatency() time.Duration
}

// Logger defines the logging interface used by bus drivers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
