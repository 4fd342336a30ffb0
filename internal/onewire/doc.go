// Package onewire provides access to one-wire temperature sensors (DS18x family).
//
// It defines the device Address type and its canonical textual identity, the
// Bus interface consumed by the sampling scheduler, and two Bus drivers:
//
//   - SysfsBus reads sensors through the Linux w1 subsystem (/sys/bus/w1/devices)
//   - SimulatedBus produces synthetic readings for development without hardware
//
// # Device Addresses
//
// Every one-wire device carries a factory-programmed 64-bit ROM code:
//
//	byte 0     family code (0x28 = DS18B20)
//	bytes 1-6  serial number, least significant byte first
//	byte 7     Dallas/Maxim CRC8 of bytes 0-6
//
// The address is the only identity key; two addresses are equal only when all
// eight bytes match.
//
// # Locking
//
// A bus is a shared resource. Callers bracket every access with Lock/Unlock:
//
//	bus.Lock()
//	defer bus.Unlock()
//	n := bus.DeviceCount()
//
// Drivers do not lock internally.
package onewire
