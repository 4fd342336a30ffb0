package onewire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultSysfsRoot is where the Linux w1 subsystem exposes its devices.
const DefaultSysfsRoot = "/sys/bus/w1/devices"

// sysfs attribute names.
const (
	attrTemperature   = "temperature"
	attrW1Slave       = "w1_slave"
	attrConvTime      = "conv_time"
	attrThermBulkRead = "therm_bulk_read"

	masterPrefix = "w1_bus_master"

	// bulkTrigger starts a simultaneous conversion on every sensor of a master.
	bulkTrigger = "trigger\n"

	// millidegreesPerDegree converts kernel readings to Celsius.
	millidegreesPerDegree = 1000.0

	// slaveSerialDigits is the hex width of the serial in a slave directory name.
	slaveSerialDigits = 12
)

// SysfsBus is a Bus backed by the Linux w1 kernel subsystem.
//
// Conversions are started with the master's therm_bulk_read trigger, which
// returns immediately; readings are then collected from each slave's
// temperature attribute (or w1_slave on older kernels).
type SysfsBus struct {
	sync.Mutex

	root    string
	wait    bool
	devices []Address
	logger  Logger
}

// NewSysfsBus opens the w1 device tree rooted at root.
//
// Returns ErrBusUnavailable if the directory does not exist, which typically
// means the w1-gpio/w1-therm kernel modules are not loaded.
func NewSysfsBus(root string) (*SysfsBus, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBusUnavailable, root)
	}

	return &SysfsBus{
		root:   root,
		wait:   true,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for the driver.
func (b *SysfsBus) SetLogger(logger Logger) {
	b.logger = logger
}

// DeviceCount rescans the device tree and returns the number of temperature
// sensors found. Sensors are ordered by their sysfs name for stable indices.
func (b *SysfsBus) DeviceCount() int {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		b.logger.Warn("w1 device scan failed", "root", b.root, "error", err)
		b.devices = nil
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	devices := make([]Address, 0, len(names))
	for _, name := range names {
		addr, ok := parseSlaveName(name)
		if !ok || !addr.IsTemperatureSensor() {
			continue
		}
		devices = append(devices, addr)
	}

	b.devices = devices
	return len(devices)
}

// AddressAt returns the address at index i of the last DeviceCount scan.
func (b *SysfsBus) AddressAt(i int) (Address, error) {
	if i < 0 || i >= len(b.devices) {
		return Address{}, fmt.Errorf("%w: index %d", ErrDeviceNotFound, i)
	}
	return b.devices[i], nil
}

// ReadTemperature reads the most recent conversion result for a.
func (b *SysfsBus) ReadTemperature(a Address) float64 {
	dir := filepath.Join(b.root, slaveName(a))

	if data, err := os.ReadFile(filepath.Join(dir, attrTemperature)); err == nil {
		if c, err := parseMillidegrees(strings.TrimSpace(string(data))); err == nil {
			return c
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, attrW1Slave))
	if err != nil {
		b.logger.Debug("w1 read failed", "address", a.String(), "error", err)
		return DisconnectedC
	}
	c, err := parseW1Slave(string(data))
	if err != nil {
		b.logger.Debug("w1 read failed", "address", a.String(), "error", err)
		return DisconnectedC
	}
	return c
}

// RequestConversion triggers a bulk conversion on every bus master that
// supports it. Masters without therm_bulk_read are skipped; their sensors
// convert on read instead.
func (b *SysfsBus) RequestConversion() error {
	masters, err := filepath.Glob(filepath.Join(b.root, masterPrefix+"*"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	triggered := 0
	for _, m := range masters {
		path := filepath.Join(m, attrThermBulkRead)
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		if writeErr := os.WriteFile(path, []byte(bulkTrigger), 0); writeErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrConversionFailed, filepath.Base(m), writeErr)
		}
		triggered++
	}

	if triggered == 0 {
		b.logger.Debug("no bulk conversion support, sensors convert on read", "masters", len(masters))
	}

	if b.wait {
		time.Sleep(b.ConversionLatency())
	}
	return nil
}

// WaitForConversion reports whether RequestConversion blocks.
func (b *SysfsBus) WaitForConversion() bool {
	return b.wait
}

// SetWaitForConversion sets whether RequestConversion blocks.
func (b *SysfsBus) SetWaitForConversion(wait bool) {
	b.wait = wait
}

// ConversionLatency returns the largest conv_time reported by the known
// sensors, or DefaultConversionLatency if none is readable.
func (b *SysfsBus) ConversionLatency() time.Duration {
	var latency time.Duration
	for _, a := range b.devices {
		data, err := os.ReadFile(filepath.Join(b.root, slaveName(a), attrConvTime))
		if err != nil {
			continue
		}
		ms, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || ms <= 0 {
			continue
		}
		if d := time.Duration(ms) * time.Millisecond; d > latency {
			latency = d
		}
	}
	if latency == 0 {
		return DefaultConversionLatency
	}
	return latency
}

// slaveName returns the w1 directory name for an address, e.g. "28-0000075ac54b".
func slaveName(a Address) string {
	return fmt.Sprintf("%02x-%0*x", a.Family(), slaveSerialDigits, a.Serial())
}

// parseSlaveName converts a w1 directory name back into a full ROM code.
func parseSlaveName(name string) (Address, bool) {
	family, serial, ok := strings.Cut(name, "-")
	if !ok || len(family) != 2 || len(serial) != slaveSerialDigits {
		return Address{}, false
	}
	f, err := strconv.ParseUint(family, 16, 8)
	if err != nil {
		return Address{}, false
	}
	s, err := strconv.ParseUint(serial, 16, 64)
	if err != nil {
		return Address{}, false
	}
	return NewAddress(byte(f), s), true
}

// parseMillidegrees converts a kernel millidegree value to Celsius.
func parseMillidegrees(s string) (float64, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing temperature %q: %w", s, err)
	}
	return float64(v) / millidegreesPerDegree, nil
}

// parseW1Slave parses the legacy two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(content string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("short w1_slave output (%d lines)", len(lines))
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("w1_slave crc check failed")
	}
	_, t, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, fmt.Errorf("w1_slave output has no t= field")
	}
	return parseMillidegrees(strings.TrimSpace(t))
}
