package ds18x

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/homeassistant"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockDevice is one device on a mockBus.
type mockDevice struct {
	addr    onewire.Address
	celsius float64
	addrErr bool // AddressAt fails for this index
}

// mockBus is an onewire.Bus that records how it was driven.
type mockBus struct {
	mu   sync.Mutex
	held bool

	devices    []mockDevice
	wait       bool
	latency    time.Duration
	requestErr error

	conversions       int
	waitDuringRequest []bool
	reads             []onewire.Address
	unlockedCalls     int
}

func newMockBus(devices ...mockDevice) *mockBus {
	return &mockBus{devices: devices, wait: true, latency: 750 * time.Millisecond}
}

func (b *mockBus) Lock()   { b.mu.Lock(); b.held = true }
func (b *mockBus) Unlock() { b.held = false; b.mu.Unlock() }

// checkHeld counts calls made without the bus lock.
func (b *mockBus) checkHeld() {
	if !b.held {
		b.unlockedCalls++
	}
}

// isFree reports whether nobody holds the lock.
func (b *mockBus) isFree() bool {
	if !b.mu.TryLock() {
		return false
	}
	b.mu.Unlock()
	return true
}

func (b *mockBus) DeviceCount() int {
	b.checkHeld()
	return len(b.devices)
}

func (b *mockBus) AddressAt(i int) (onewire.Address, error) {
	b.checkHeld()
	if i < 0 || i >= len(b.devices) || b.devices[i].addrErr {
		return onewire.Address{}, fmt.Errorf("%w: index %d", onewire.ErrDeviceNotFound, i)
	}
	return b.devices[i].addr, nil
}

func (b *mockBus) ReadTemperature(a onewire.Address) float64 {
	b.checkHeld()
	b.reads = append(b.reads, a)
	for _, d := range b.devices {
		if d.addr == a {
			return d.celsius
		}
	}
	return onewire.DisconnectedC
}

func (b *mockBus) RequestConversion() error {
	b.checkHeld()
	b.conversions++
	b.waitDuringRequest = append(b.waitDuringRequest, b.wait)
	return b.requestErr
}

func (b *mockBus) WaitForConversion() bool {
	b.checkHeld()
	return b.wait
}

func (b *mockBus) SetWaitForConversion(wait bool) {
	b.checkHeld()
	b.wait = wait
}

func (b *mockBus) ConversionLatency() time.Duration {
	b.checkHeld()
	return b.latency
}

// armedTimer is one Set call on fakeTimers.
type armedTimer struct {
	period time.Duration
	flags  timer.Flags
	cb     timer.Callback
}

// fakeTimers records armed timers; tests fire them by hand.
type fakeTimers struct {
	armed       []armedTimer
	err         error // every Set fails
	failOneShot bool  // Set fails for one-shot timers
}

func (f *fakeTimers) Set(period time.Duration, flags timer.Flags, cb timer.Callback) (timer.ID, error) {
	if f.err != nil {
		return timer.InvalidID, f.err
	}
	if f.failOneShot && flags&timer.Repeat == 0 {
		return timer.InvalidID, errors.New("timer table full")
	}
	f.armed = append(f.armed, armedTimer{period: period, flags: flags, cb: cb})
	return timer.ID(len(f.armed)), nil
}

// fireLast runs and forgets the most recently armed one-shot timer.
func (f *fakeTimers) fireLast(t *testing.T) {
	t.Helper()
	if len(f.armed) == 0 {
		t.Fatal("no timer armed")
	}
	last := f.armed[len(f.armed)-1]
	if last.flags&timer.Repeat != 0 {
		t.Fatal("last armed timer is the repeating one")
	}
	f.armed = f.armed[:len(f.armed)-1]
	last.cb()
}

// capturePublisher records messages published through a homeassistant.Registry.
type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (p *capturePublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][]string)
	}
	p.messages[topic] = append(p.messages[topic], string(payload))
	return nil
}

func (p *capturePublisher) IsConnected() bool { return true }

func (p *capturePublisher) on(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages[topic]...)
}

// statusValues decodes the status messages published for an object.
func (p *capturePublisher) statusValues(t *testing.T, object string) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, msg := range p.on(testTopics.State(object)) {
		var v map[string]string
		if err := json.Unmarshal([]byte(msg), &v); err != nil {
			t.Fatalf("status payload %q is not JSON: %v", msg, err)
		}
		out = append(out, v)
	}
	return out
}

// failingAutomation fails AddClass, to exercise rollback.
type failingAutomation struct {
	*homeassistant.Registry
	failAddClass bool
	removed      []string
}

func (f *failingAutomation) AddClass(o *homeassistant.Object, class string, attrs map[string]string) error {
	if f.failAddClass {
		return errors.New("class table full")
	}
	return f.Registry.AddClass(o, class, attrs)
}

func (f *failingAutomation) RemoveObject(o *homeassistant.Object) error {
	f.removed = append(f.removed, o.Name())
	return f.Registry.RemoveObject(o)
}

// recordingLogger keeps warnings and errors for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warnings = append(l.warnings, msg)
	l.mu.Unlock()
}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

var testTopics = mqtt.Topics{DiscoveryPrefix: "homeassistant", NodeID: "onewire"}

const testPrefix = "ds_"

var (
	addrA = mustAddress("28FF4A1B02160348")
	addrB = mustAddress("28FF4A1B02160349")
	addrC = mustAddress("28FF4A1B0216034A")
	addrD = mustAddress("28FF4A1B0216034B")
)

func mustAddress(s string) onewire.Address {
	a, err := onewire.ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// newTestAutomation returns a homeassistant registry with a capturing publisher.
func newTestAutomation() (*homeassistant.Registry, *capturePublisher) {
	pub := &capturePublisher{}
	ha := homeassistant.NewRegistry(homeassistant.RegistryConfig{
		Topics:    testTopics,
		Publisher: pub,
	})
	return ha, pub
}
