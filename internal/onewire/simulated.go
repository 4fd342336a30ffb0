package onewire

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// simulated sensor behaviour.
const (
	simBaseTemperature = 20.0
	simSpread          = 4.0
	simDriftStep       = 0.25
	simResolution      = 0.0625 // 12-bit DS18B20 step
)

// SimulatedDevice is one synthetic sensor on a SimulatedBus.
type SimulatedDevice struct {
	Address      Address
	Celsius      float64
	Disconnected bool
}

// SimulatedBus is an in-memory Bus used for development without hardware.
//
// Each RequestConversion moves every sensor by a small random step. Readings
// are quantised to the DS18B20 12-bit resolution.
type SimulatedBus struct {
	sync.Mutex

	devices []SimulatedDevice
	wait    bool
	latency time.Duration
	rng     *rand.Rand
}

// NewSimulatedBus creates a bus with count DS18B20 sensors. The same seed
// always produces the same addresses and readings.
func NewSimulatedBus(count int, seed uint64) *SimulatedBus {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)) //nolint:gosec // simulation only

	devices := make([]SimulatedDevice, 0, count)
	for i := 0; i < count; i++ {
		devices = append(devices, SimulatedDevice{
			Address: NewAddress(FamilyDS18B20, rng.Uint64()&0xFFFFFFFFFFFF),
			Celsius: simBaseTemperature + (rng.Float64()*2-1)*simSpread,
		})
	}

	return &SimulatedBus{
		devices: devices,
		wait:    true,
		latency: DefaultConversionLatency,
		rng:     rng,
	}
}

// Devices returns a copy of the simulated devices.
func (b *SimulatedBus) Devices() []SimulatedDevice {
	out := make([]SimulatedDevice, len(b.devices))
	copy(out, b.devices)
	return out
}

// SetDisconnected marks the device at index i as (dis)connected.
func (b *SimulatedBus) SetDisconnected(i int, disconnected bool) error {
	if i < 0 || i >= len(b.devices) {
		return fmt.Errorf("%w: index %d", ErrDeviceNotFound, i)
	}
	b.devices[i].Disconnected = disconnected
	return nil
}

// DeviceCount returns the number of simulated devices.
func (b *SimulatedBus) DeviceCount() int {
	return len(b.devices)
}

// AddressAt returns the address of device i.
func (b *SimulatedBus) AddressAt(i int) (Address, error) {
	if i < 0 || i >= len(b.devices) {
		return Address{}, fmt.Errorf("%w: index %d", ErrDeviceNotFound, i)
	}
	return b.devices[i].Address, nil
}

// ReadTemperature returns the current simulated reading for a.
func (b *SimulatedBus) ReadTemperature(a Address) float64 {
	for _, d := range b.devices {
		if d.Address != a {
			continue
		}
		if d.Disconnected {
			return DisconnectedC
		}
		return math.Round(d.Celsius/simResolution) * simResolution
	}
	return DisconnectedC
}

// RequestConversion advances every sensor by a random step.
func (b *SimulatedBus) RequestConversion() error {
	for i := range b.devices {
		b.devices[i].Celsius += (b.rng.Float64()*2 - 1) * simDriftStep
	}
	if b.wait {
		time.Sleep(b.latency)
	}
	return nil
}

// WaitForConversion reports whether RequestConversion blocks.
func (b *SimulatedBus) WaitForConversion() bool {
	return b.wait
}

// SetWaitForConversion sets whether RequestConversion blocks.
func (b *SimulatedBus) SetWaitForConversion(wait bool) {
	b.wait = wait
}

// ConversionLatency returns the simulated conversion time.
func (b *SimulatedBus) ConversionLatency() time.Duration {
	return b.latency
}
