package ds18x

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
)

func TestEffectivePeriod(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: -1, want: 5 * time.Second},
		{seconds: 0, want: 5 * time.Second},
		{seconds: 2, want: 5000 * time.Millisecond},
		{seconds: 5, want: 5 * time.Second},
		{seconds: 30, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := EffectivePeriod(tt.seconds); got != tt.want {
			t.Errorf("EffectivePeriod(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

// newTestScheduler wires a scheduler over bus with fake timers.
func newTestScheduler(bus *mockBus) (*Scheduler, *fakeTimers, *Registry, *capturePublisher) {
	ha, pub := newTestAutomation()
	reg := NewRegistry(ha, testPrefix)
	timers := &fakeTimers{}
	return NewScheduler(bus, timers, reg, 2), timers, reg, pub
}

func TestScheduler_Start(t *testing.T) {
	s, timers, _, _ := newTestScheduler(newMockBus())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(timers.armed) != 1 {
		t.Fatalf("armed timers = %d, want 1", len(timers.armed))
	}
	got := timers.armed[0]
	if got.period != 5*time.Second {
		t.Errorf("period = %v, want 5s", got.period)
	}
	if got.flags != timer.Repeat|timer.RunNow {
		t.Errorf("flags = %v, want Repeat|RunNow", got.flags)
	}
}

func TestScheduler_StartFailure(t *testing.T) {
	s, timers, _, _ := newTestScheduler(newMockBus())
	timers.err = errors.New("no timers")

	if err := s.Start(); err == nil {
		t.Error("Start() error = nil, want failure")
	}
}

func TestScheduler_RequestConversion(t *testing.T) {
	bus := newMockBus(mockDevice{addr: addrA, celsius: 20})
	bus.latency = 375 * time.Millisecond
	s, timers, _, _ := newTestScheduler(bus)

	s.requestConversion()

	if bus.conversions != 1 {
		t.Fatalf("conversions = %d, want 1", bus.conversions)
	}
	if bus.waitDuringRequest[0] {
		t.Error("conversion requested with blocking wait enabled")
	}
	if !bus.wait {
		t.Error("blocking wait flag not restored")
	}
	if bus.unlockedCalls != 0 {
		t.Errorf("bus calls without lock = %d, want 0", bus.unlockedCalls)
	}
	if !bus.isFree() {
		t.Error("bus lock held after phase 1")
	}
	if len(timers.armed) != 1 {
		t.Fatalf("armed timers = %d, want 1", len(timers.armed))
	}
	if timers.armed[0].period != 375*time.Millisecond || timers.armed[0].flags != 0 {
		t.Errorf("read timer = %v flags %v, want one-shot 375ms", timers.armed[0].period, timers.armed[0].flags)
	}
	if len(bus.reads) != 0 {
		t.Error("devices read during phase 1")
	}
}

func TestScheduler_RequestConversionKeepsDisabledWait(t *testing.T) {
	bus := newMockBus()
	bus.wait = false
	s, _, _, _ := newTestScheduler(bus)

	s.requestConversion()

	if bus.wait {
		t.Error("blocking wait enabled by phase 1")
	}
}

func TestScheduler_RequestFailureSkipsCycle(t *testing.T) {
	bus := newMockBus()
	bus.requestErr = onewire.ErrConversionFailed
	s, timers, _, _ := newTestScheduler(bus)
	logger := &recordingLogger{}
	s.SetLogger(logger)

	s.requestConversion()

	if len(timers.armed) != 0 {
		t.Error("read timer armed after failed request")
	}
	if !bus.wait {
		t.Error("blocking wait flag not restored after failure")
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(logger.warnings))
	}
}

func TestScheduler_ReadTimerFailureIsLogged(t *testing.T) {
	bus := newMockBus()
	s, timers, _, _ := newTestScheduler(bus)
	timers.failOneShot = true
	logger := &recordingLogger{}
	s.SetLogger(logger)

	s.requestConversion()

	if len(logger.errors) != 1 {
		t.Errorf("errors = %d, want 1", len(logger.errors))
	}
	if !bus.isFree() {
		t.Error("bus lock held after failed arm")
	}
}

func TestScheduler_ReadAllIsolatesFailures(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20.5},
		mockDevice{addr: addrB, celsius: 21.0},
		mockDevice{addr: addrC, celsius: onewire.DisconnectedC},
		mockDevice{addr: addrD, celsius: 22.25},
	)
	s, _, reg, pub := newTestScheduler(bus)

	s.readAll()

	for _, a := range []onewire.Address{addrA, addrB, addrD} {
		if _, ok := reg.Get(a); !ok {
			t.Errorf("no record for %s", a)
		}
	}
	if _, ok := reg.Get(addrC); ok {
		t.Error("record created for disconnected sensor")
	}

	want := []onewire.Address{addrA, addrB, addrC, addrD}
	if len(bus.reads) != len(want) {
		t.Fatalf("reads = %d, want %d", len(bus.reads), len(want))
	}
	for i, a := range want {
		if bus.reads[i] != a {
			t.Errorf("read %d = %s, want %s (enumeration order)", i, bus.reads[i], a)
		}
	}

	status := pub.statusValues(t, "ds_28FF4A1B0216034B")
	if len(status) != 1 || status[0]["temperature"] != "22.2500" {
		t.Errorf("device 3 status = %v, want 22.2500", status)
	}
	if bus.unlockedCalls != 0 {
		t.Errorf("bus calls without lock = %d, want 0", bus.unlockedCalls)
	}
	if !bus.isFree() {
		t.Error("bus lock held after phase 2")
	}
}

func TestScheduler_ReadAllSkipsUnreadableAddress(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20},
		mockDevice{addr: addrB, celsius: 21, addrErr: true},
		mockDevice{addr: addrC, celsius: 22},
	)
	s, _, reg, _ := newTestScheduler(bus)
	logger := &recordingLogger{}
	s.SetLogger(logger)

	s.readAll()

	if reg.Len() != 2 {
		t.Errorf("records = %d, want 2", reg.Len())
	}
	if _, ok := reg.Get(addrC); !ok {
		t.Error("device after unreadable address not processed")
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %d, want 1", len(logger.warnings))
	}
}

func TestScheduler_ReadAllContinuesAfterCreateFailure(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20},
		mockDevice{addr: addrB, celsius: 21},
	)
	s, _, reg, _ := newTestScheduler(bus)
	// addrA's name is taken by addrB's binding.
	_ = reg.AddBinding(Binding{Address: addrB, Name: "ds_28FF4A1B02160348"})
	if _, err := reg.GetOrCreate(addrB, SourceConfig); err != nil {
		t.Fatal(err)
	}

	s.readAll()

	if _, ok := reg.Get(addrA); ok {
		t.Error("record created for colliding name")
	}
	rec, _ := reg.Get(addrB)
	if rec.Temperature != 21 {
		t.Errorf("addrB temperature = %v, want 21", rec.Temperature)
	}
}

func TestScheduler_TwoCycles(t *testing.T) {
	bus := newMockBus(mockDevice{addr: addrA, celsius: 20.0625})
	s, timers, reg, pub := newTestScheduler(bus)

	s.requestConversion()
	timers.fireLast(t)

	bus.devices[0].celsius = 20.125
	s.requestConversion()
	timers.fireLast(t)

	if reg.Len() != 1 {
		t.Errorf("records = %d, want 1", reg.Len())
	}
	status := pub.statusValues(t, "ds_28FF4A1B02160348")
	if len(status) != 2 {
		t.Fatalf("status publications = %d, want 2", len(status))
	}
	if status[0]["temperature"] != "20.0625" || status[1]["temperature"] != "20.1250" {
		t.Errorf("status = %v, want 20.0625 then 20.1250", status)
	}
	if bus.conversions != 2 {
		t.Errorf("conversions = %d, want 2", bus.conversions)
	}
}

func TestScheduler_Observers(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20},
		mockDevice{addr: addrB, celsius: onewire.DisconnectedC},
	)
	s, _, _, _ := newTestScheduler(bus)

	var seen []Record
	s.AddObserver(func(rec Record) {
		if !bus.isFree() {
			t.Error("observer called with bus locked")
		}
		seen = append(seen, rec)
	})

	s.readAll()

	if len(seen) != 1 || seen[0].Address != addrA || seen[0].Temperature != 20 {
		t.Errorf("observed = %+v, want one reading of addrA", seen)
	}
}

func TestScheduler_CreateHooksRunAfterUnlock(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20},
		mockDevice{addr: addrB, celsius: 21},
	)
	s, _, reg, _ := newTestScheduler(bus)

	var created []onewire.Address
	reg.OnCreate(func(rec Record) {
		if !bus.isFree() {
			t.Errorf("create hook for %s called with bus locked", rec.Address)
		}
		created = append(created, rec.Address)
	})

	s.readAll()
	s.readAll()

	if len(created) != 2 || created[0] != addrA || created[1] != addrB {
		t.Errorf("created = %v, want [%s %s] once each", created, addrA, addrB)
	}
}

func TestScheduler_CreateHookPanicRecovered(t *testing.T) {
	bus := newMockBus(mockDevice{addr: addrA, celsius: 20})
	s, _, reg, _ := newTestScheduler(bus)
	reg.OnCreate(func(Record) { panic("inventory gone") })

	var seen int
	s.AddObserver(func(Record) { seen++ })

	s.readAll()

	if seen != 1 {
		t.Errorf("observer calls = %d, want 1 after a panicking create hook", seen)
	}
	if !bus.isFree() {
		t.Error("bus lock held after panic")
	}
}

func TestScheduler_ObserverPanicRecovered(t *testing.T) {
	bus := newMockBus(
		mockDevice{addr: addrA, celsius: 20},
		mockDevice{addr: addrB, celsius: 21},
	)
	s, _, _, _ := newTestScheduler(bus)
	logger := &recordingLogger{}
	s.SetLogger(logger)

	calls := 0
	s.AddObserver(func(Record) {
		calls++
		panic("observer bug")
	})

	s.readAll()

	if calls != 2 {
		t.Errorf("observer calls = %d, want 2", calls)
	}
	if len(logger.errors) != 2 {
		t.Errorf("logged panics = %d, want 2", len(logger.errors))
	}
}

func TestScheduler_WithTimerQueue(t *testing.T) {
	bus := newMockBus(mockDevice{addr: addrA, celsius: 19.5})
	bus.latency = 10 * time.Millisecond
	ha, pub := newTestAutomation()
	reg := NewRegistry(ha, testPrefix)
	q := timer.New()
	s := NewScheduler(bus, q, reg, 60)

	done := make(chan Record, 1)
	s.AddObserver(func(rec Record) {
		select {
		case done <- rec:
		default:
		}
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	select {
	case rec := <-done:
		if rec.Temperature != 19.5 {
			t.Errorf("Temperature = %v, want 19.5", rec.Temperature)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reading within 2s of start")
	}

	if len(pub.statusValues(t, "ds_28FF4A1B02160348")) == 0 {
		t.Error("no status published")
	}
}
