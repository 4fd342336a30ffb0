package ds18x

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/homeassistant"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
)

func TestInit_Disabled(t *testing.T) {
	ha, _ := newTestAutomation()
	bus := newMockBus()
	timers := &fakeTimers{}

	f, err := Init(config.DS18xHAConfig{Enable: false, Period: 30}, Deps{Bus: bus, Timers: timers, Automation: ha})
	if err != nil || f != nil {
		t.Fatalf("Init() = %v, %v, want nil, nil", f, err)
	}
	if len(timers.armed) != 0 {
		t.Error("timer armed while disabled")
	}
	if !bus.wait {
		t.Error("bus touched while disabled")
	}
}

func TestInit_NoBus(t *testing.T) {
	ha, _ := newTestAutomation()
	timers := &fakeTimers{}

	f, err := Init(config.DS18xHAConfig{Enable: true, Period: 30}, Deps{Timers: timers, Automation: ha})
	if err != nil || f != nil {
		t.Fatalf("Init() = %v, %v, want nil, nil", f, err)
	}
	if len(timers.armed) != 0 {
		t.Error("timer armed without a bus")
	}
}

func TestInit_Enabled(t *testing.T) {
	ha, _ := newTestAutomation()
	bus := newMockBus()
	timers := &fakeTimers{}

	f, err := Init(config.DS18xHAConfig{Enable: true, Period: 2, NamePrefix: "t_"}, Deps{
		Bus:        bus,
		Timers:     timers,
		Automation: ha,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if f == nil || f.Registry == nil || f.Scheduler == nil {
		t.Fatal("Init() returned no feature")
	}

	if bus.wait {
		t.Error("blocking conversion wait still enabled")
	}
	if bus.unlockedCalls != 0 {
		t.Errorf("bus calls without lock = %d", bus.unlockedCalls)
	}
	if f.Scheduler.Period() != 5*time.Second {
		t.Errorf("Period() = %v, want 5s", f.Scheduler.Period())
	}
	if len(timers.armed) != 1 || timers.armed[0].flags != timer.Repeat|timer.RunNow {
		t.Errorf("armed = %+v, want one Repeat|RunNow timer", timers.armed)
	}
	if got := f.Registry.ResolveName(addrA); got != "t_28FF4A1B02160348" {
		t.Errorf("ResolveName() = %q, want configured prefix", got)
	}

	// The provider is registered under its name.
	if err := ha.RegisterProvider(ProviderName, func(json.RawMessage) error { return nil }); !errors.Is(err, homeassistant.ErrProviderExists) {
		t.Errorf("provider %q not registered: %v", ProviderName, err)
	}
}

func TestInit_ProviderRegistrationFails(t *testing.T) {
	ha, _ := newTestAutomation()
	_ = ha.RegisterProvider(ProviderName, func(json.RawMessage) error { return nil })
	timers := &fakeTimers{}

	_, err := Init(config.DS18xHAConfig{Enable: true, Period: 30}, Deps{Bus: newMockBus(), Timers: timers, Automation: ha})
	if !errors.Is(err, homeassistant.ErrProviderExists) {
		t.Errorf("Init() error = %v, want ErrProviderExists", err)
	}
	if len(timers.armed) != 0 {
		t.Error("timer armed after provider failure")
	}
}

func TestInit_TimerFails(t *testing.T) {
	ha, _ := newTestAutomation()
	timers := &fakeTimers{err: errors.New("no timers")}

	if _, err := Init(config.DS18xHAConfig{Enable: true, Period: 30}, Deps{Bus: newMockBus(), Timers: timers, Automation: ha}); err == nil {
		t.Error("Init() error = nil, want timer failure")
	}
}
