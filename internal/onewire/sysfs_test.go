package onewire

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSysfsFile creates root/dir/name with content, creating dir as needed.
func writeSysfsFile(t *testing.T, root, dir, name, content string) {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	if err := os.WriteFile(filepath.Join(path, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// setupSysfs builds a fake w1 tree with one master and three slaves.
func setupSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeSysfsFile(t, root, "w1_bus_master1", attrThermBulkRead, "0\n")
	writeSysfsFile(t, root, "28-0000075ac54b", attrTemperature, "23125\n")
	writeSysfsFile(t, root, "28-0000075ac54b", attrConvTime, "750\n")
	writeSysfsFile(t, root, "10-000802b4c0a1", attrW1Slave,
		"72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=-1500\n")
	writeSysfsFile(t, root, "28-00000a0b0c0d", attrW1Slave,
		"72 01 4b 46 7f ff 0e 10 57 : crc=00 NO\n72 01 4b 46 7f ff 0e 10 57 t=23125\n")
	// Non-temperature family is ignored.
	writeSysfsFile(t, root, "01-000012345678", "id", "x")

	return root
}

func TestNewSysfsBus_Missing(t *testing.T) {
	_, err := NewSysfsBus(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrBusUnavailable) {
		t.Fatalf("NewSysfsBus() error = %v, want ErrBusUnavailable", err)
	}
}

func TestSysfsBus_Enumeration(t *testing.T) {
	bus, err := NewSysfsBus(setupSysfs(t))
	if err != nil {
		t.Fatalf("NewSysfsBus() error = %v", err)
	}
	bus.Lock()
	defer bus.Unlock()

	if n := bus.DeviceCount(); n != 3 {
		t.Fatalf("DeviceCount() = %d, want 3", n)
	}

	wantNames := []string{"10-000802b4c0a1", "28-0000075ac54b", "28-00000a0b0c0d"}
	for i, want := range wantNames {
		a, err := bus.AddressAt(i)
		if err != nil {
			t.Fatalf("AddressAt(%d) error = %v", i, err)
		}
		if got := slaveName(a); got != want {
			t.Errorf("AddressAt(%d) = %s, want %s", i, got, want)
		}
		if !a.ValidCRC() {
			t.Errorf("AddressAt(%d) has invalid CRC", i)
		}
	}

	if _, err := bus.AddressAt(3); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("AddressAt(3) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSysfsBus_ReadTemperature(t *testing.T) {
	bus, err := NewSysfsBus(setupSysfs(t))
	if err != nil {
		t.Fatalf("NewSysfsBus() error = %v", err)
	}
	bus.Lock()
	defer bus.Unlock()
	bus.DeviceCount()

	tests := []struct {
		name string
		dir  string
		want float64
	}{
		{name: "temperature attribute", dir: "28-0000075ac54b", want: 23.125},
		{name: "legacy w1_slave", dir: "10-000802b4c0a1", want: -1.5},
		{name: "crc failure", dir: "28-00000a0b0c0d", want: DisconnectedC},
		{name: "missing device", dir: "28-0000deadbeef", want: DisconnectedC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := parseSlaveName(tt.dir)
			if !ok {
				t.Fatalf("parseSlaveName(%q) failed", tt.dir)
			}
			if got := bus.ReadTemperature(a); got != tt.want {
				t.Errorf("ReadTemperature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSysfsBus_RequestConversion(t *testing.T) {
	root := setupSysfs(t)
	bus, err := NewSysfsBus(root)
	if err != nil {
		t.Fatalf("NewSysfsBus() error = %v", err)
	}
	bus.Lock()
	defer bus.Unlock()
	bus.DeviceCount()
	bus.SetWaitForConversion(false)

	start := time.Now()
	if err := bus.RequestConversion(); err != nil {
		t.Fatalf("RequestConversion() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("RequestConversion() blocked for %v with wait disabled", elapsed)
	}

	data, err := os.ReadFile(filepath.Join(root, "w1_bus_master1", attrThermBulkRead))
	if err != nil {
		t.Fatalf("reading trigger: %v", err)
	}
	if string(data) != bulkTrigger {
		t.Errorf("therm_bulk_read = %q, want %q", data, bulkTrigger)
	}
}

func TestSysfsBus_ConversionLatency(t *testing.T) {
	root := setupSysfs(t)
	writeSysfsFile(t, root, "28-00000a0b0c0d", attrConvTime, "94\n")

	bus, err := NewSysfsBus(root)
	if err != nil {
		t.Fatalf("NewSysfsBus() error = %v", err)
	}
	bus.Lock()
	defer bus.Unlock()

	if got := bus.ConversionLatency(); got != DefaultConversionLatency {
		t.Errorf("ConversionLatency() before scan = %v, want default", got)
	}

	bus.DeviceCount()
	if got := bus.ConversionLatency(); got != 750*time.Millisecond {
		t.Errorf("ConversionLatency() = %v, want 750ms", got)
	}
}

func TestParseSlaveName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"28-0000075ac54b", true},
		{"w1_bus_master1", false},
		{"28-075ac54b", false},
		{"zz-0000075ac54b", false},
		{"28-00000zzzzzzz", false},
	}
	for _, tt := range tests {
		a, ok := parseSlaveName(tt.name)
		if ok != tt.ok {
			t.Errorf("parseSlaveName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && slaveName(a) != tt.name {
			t.Errorf("slaveName(parseSlaveName(%q)) = %q", tt.name, slaveName(a))
		}
	}
}
